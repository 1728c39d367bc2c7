// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"dynconn/connectors/base"
)

// ErrObjectNotFound is returned by objectStore implementations for a missing object
var ErrObjectNotFound = errors.New("object not found")

// objectStore is the minimal blob API BlobStorage needs. Implementations exist
// for S3, GCS and Azure Blob Storage.
type objectStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

const blobSuffix = ".json"

// BlobStorage keeps one JSON object per descriptor under prefix/<key>.json
type BlobStorage struct {
	objects objectStore
	backend string
	prefix  string
	logger  *log.Logger
}

func newBlobStorage(objects objectStore, backend, prefix string) *BlobStorage {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &BlobStorage{
		objects: objects,
		backend: backend,
		prefix:  prefix,
		logger:  log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags),
	}
}

func (s *BlobStorage) objectName(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || key == "." || key == ".." {
		return "", base.NewException(fmt.Sprintf("key %q cannot be used as an object name", key))
	}
	return s.prefix + key + blobSuffix, nil
}

// ValidateKey reports an Exception for a key that cannot be an object name
func (s *BlobStorage) ValidateKey(key string) error {
	_, err := s.objectName(key)
	return err
}

func (s *BlobStorage) keyFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, s.prefix) || !strings.HasSuffix(name, blobSuffix) {
		return "", false
	}
	key := strings.TrimSuffix(strings.TrimPrefix(name, s.prefix), blobSuffix)
	if key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}

// Load returns the descriptor stored under key
func (s *BlobStorage) Load(ctx context.Context, key string) (base.ConnInfo, error) {
	name, err := s.objectName(key)
	if err != nil {
		return base.ConnInfo{}, err
	}

	data, err := s.objects.Get(ctx, name)
	if errors.Is(err, ErrObjectNotFound) {
		return base.ConnInfo{}, base.NewNotFound(key)
	}
	if err != nil {
		return base.ConnInfo{}, base.NewConnFailed(fmt.Sprintf("failed to read %s from %s: %v", name, s.backend, err))
	}

	info, err := decodeStoredInfo(data)
	if err != nil {
		return base.ConnInfo{}, base.NewException(fmt.Sprintf("conn_info %s is corrupt: %v", key, err))
	}
	return info, nil
}

// decodeStoredInfo decodes a JSON descriptor and rejects one without a driver
func decodeStoredInfo(data []byte) (base.ConnInfo, error) {
	var info base.ConnInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return base.ConnInfo{}, err
	}
	if !info.Driver.Valid() {
		return base.ConnInfo{}, fmt.Errorf("driver is missing")
	}
	return info, nil
}

// LoadAll lists the prefix and decodes every descriptor object in it.
// Objects that vanish between list and read, or fail to decode, are skipped.
func (s *BlobStorage) LoadAll(ctx context.Context) (map[string]base.ConnInfo, error) {
	names, err := s.objects.List(ctx, s.prefix)
	if err != nil {
		return nil, base.NewConnFailed(fmt.Sprintf("failed to list %s: %v", s.backend, err))
	}

	out := make(map[string]base.ConnInfo, len(names))
	for _, name := range names {
		key, ok := s.keyFromName(name)
		if !ok {
			continue
		}
		info, err := s.Load(ctx, key)
		if err != nil {
			var cse *base.ConnStoreError
			if errors.As(err, &cse) && cse.Kind == base.KindConnFailed {
				return nil, err
			}
			s.logger.Printf("Skipping %s: %v", path.Base(name), err)
			continue
		}
		out[key] = info
	}
	return out, nil
}

// Save writes a new object for key. An existing object is left alone.
func (s *BlobStorage) Save(ctx context.Context, key string, info base.ConnInfo) error {
	name, err := s.objectName(key)
	if err != nil {
		return err
	}

	_, err = s.objects.Get(ctx, name)
	switch {
	case err == nil:
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: already stored", key))
	case !errors.Is(err, ErrObjectNotFound):
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: %v", key, err))
	}

	if err := s.put(ctx, name, info); err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: %v", key, err))
	}
	s.logger.Printf("Saved conn_info %s to %s (%s)", key, s.backend, info.Redacted())
	return nil
}

// Update overwrites the object for key
func (s *BlobStorage) Update(ctx context.Context, key string, info base.ConnInfo) error {
	name, err := s.objectName(key)
	if err != nil {
		return err
	}
	if err := s.put(ctx, name, info); err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to update conn_info %s: %v", key, err))
	}
	s.logger.Printf("Updated conn_info %s in %s (%s)", key, s.backend, info.Redacted())
	return nil
}

// Delete removes the object for key. A missing object is not an error.
func (s *BlobStorage) Delete(ctx context.Context, key string) error {
	name, err := s.objectName(key)
	if err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, name); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return base.NewConnFailed(fmt.Sprintf("failed to delete conn_info %s: %v", key, err))
	}
	s.logger.Printf("Deleted conn_info %s from %s", key, s.backend)
	return nil
}

// Close releases the underlying client
func (s *BlobStorage) Close() error {
	return s.objects.Close()
}

func (s *BlobStorage) put(ctx context.Context, name string, info base.ConnInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.objects.Put(ctx, name, data)
}
