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
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSOptions configures the Google Cloud Storage client
type GCSOptions struct {
	Bucket          string
	CredentialsFile string
	Endpoint        string
}

type gcsObjects struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCSStorage builds a BlobStorage over a GCS bucket. Application default
// credentials are used unless a credentials file is given.
func NewGCSStorage(ctx context.Context, opts GCSOptions, prefix string) (*BlobStorage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	objects := &gcsObjects{client: client, bucket: client.Bucket(opts.Bucket)}
	return newBlobStorage(objects, "gs://"+opts.Bucket, prefix), nil
}

func (o *gcsObjects) Put(ctx context.Context, name string, data []byte) error {
	w := o.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (o *gcsObjects) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := o.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (o *gcsObjects) Delete(ctx context.Context, name string) error {
	err := o.bucket.Object(name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (o *gcsObjects) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := o.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (o *gcsObjects) Close() error {
	return o.client.Close()
}
