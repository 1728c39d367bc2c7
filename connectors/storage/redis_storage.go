// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"dynconn/connectors/base"
)

// DefaultRedisHash is the hash that holds key -> descriptor JSON
const DefaultRedisHash = "dynconn:conn_info"

// RedisStorage keeps every descriptor as one field of a single Redis hash
type RedisStorage struct {
	client *redis.Client
	hash   string
	logger *log.Logger
}

// NewRedisStorage connects to redisURL (redis://host:port/db) and verifies
// the connection with a ping
func NewRedisStorage(ctx context.Context, redisURL, hash string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStorage(client, hash), nil
}

func newRedisStorage(client *redis.Client, hash string) *RedisStorage {
	if hash == "" {
		hash = DefaultRedisHash
	}
	s := &RedisStorage{
		client: client,
		hash:   hash,
		logger: log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags),
	}
	s.logger.Printf("Redis conn_info storage initialized (hash=%s)", hash)
	return s
}

// Load returns the descriptor stored under key
func (s *RedisStorage) Load(ctx context.Context, key string) (base.ConnInfo, error) {
	raw, err := s.client.HGet(ctx, s.hash, key).Result()
	if err == redis.Nil {
		return base.ConnInfo{}, base.NewNotFound(key)
	}
	if err != nil {
		return base.ConnInfo{}, base.NewConnFailed(fmt.Sprintf("failed to load conn_info %s: %v", key, err))
	}

	info, err := decodeStoredInfo([]byte(raw))
	if err != nil {
		return base.ConnInfo{}, base.NewException(fmt.Sprintf("conn_info %s is corrupt: %v", key, err))
	}
	return info, nil
}

// LoadAll returns every descriptor in the hash. Undecodable fields are
// skipped and logged.
func (s *RedisStorage) LoadAll(ctx context.Context) (map[string]base.ConnInfo, error) {
	fields, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, base.NewConnFailed(fmt.Sprintf("failed to load conn_info: %v", err))
	}

	out := make(map[string]base.ConnInfo, len(fields))
	for key, raw := range fields {
		info, err := decodeStoredInfo([]byte(raw))
		if err != nil {
			s.logger.Printf("Skipping corrupt conn_info %s: %v", key, err)
			continue
		}
		out[key] = info
	}
	return out, nil
}

// Save stores info under key. An existing field is left alone and reported.
func (s *RedisStorage) Save(ctx context.Context, key string, info base.ConnInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return base.NewException(fmt.Sprintf("failed to encode conn_info: %v", err))
	}

	created, err := s.client.HSetNX(ctx, s.hash, key, data).Result()
	if err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: %v", key, err))
	}
	if !created {
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: already stored", key))
	}

	s.logger.Printf("Saved conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Update overwrites the field under key
func (s *RedisStorage) Update(ctx context.Context, key string, info base.ConnInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return base.NewException(fmt.Sprintf("failed to encode conn_info: %v", err))
	}

	if err := s.client.HSet(ctx, s.hash, key, data).Err(); err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to update conn_info %s: %v", key, err))
	}

	s.logger.Printf("Updated conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Delete removes the field under key
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to delete conn_info %s: %v", key, err))
	}
	s.logger.Printf("Deleted conn_info %s", key)
	return nil
}

// Close closes the Redis client
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
