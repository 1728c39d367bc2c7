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
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureOptions configures the Azure Blob Storage client. A connection string
// takes precedence; otherwise the account name is used with the default Azure
// credential chain.
type AzureOptions struct {
	Container        string
	AccountName      string
	ConnectionString string
}

type azureObjects struct {
	client    *azblob.Client
	container string
}

// NewAzureStorage builds a BlobStorage over an Azure Blob container
func NewAzureStorage(opts AzureOptions, prefix string) (*BlobStorage, error) {
	if opts.Container == "" {
		return nil, fmt.Errorf("azure container is required")
	}

	var client *azblob.Client
	var err error
	switch {
	case opts.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
	case opts.AccountName != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", credErr)
		}
		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", opts.AccountName)
		client, err = azblob.NewClient(serviceURL, cred, nil)
	default:
		return nil, fmt.Errorf("azure account name or connection string is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	objects := &azureObjects{client: client, container: opts.Container}
	return newBlobStorage(objects, "azblob://"+opts.Container, prefix), nil
}

func (o *azureObjects) Put(ctx context.Context, name string, data []byte) error {
	_, err := o.client.UploadBuffer(ctx, o.container, name, data, nil)
	return err
}

func (o *azureObjects) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := o.client.DownloadStream(ctx, o.container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

func (o *azureObjects) Delete(ctx context.Context, name string) error {
	_, err := o.client.DeleteBlob(ctx, o.container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return ErrObjectNotFound
	}
	return err
}

func (o *azureObjects) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	pager := o.client.NewListBlobsFlatPager(o.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

func (o *azureObjects) Close() error {
	return nil
}
