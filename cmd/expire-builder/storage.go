// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage is the part of the S3 client the uploader needs. The other
// implementation is FakeStorageClient, used for testing.
type Storage interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	FPutObject(ctx context.Context, bucket, remotepath, localpath string,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewStorageClient builds an S3 client from a JSON key file with
// Endpoint, Key and Secret fields.
func NewStorageClient(keypath string) (*minio.Client, error) {
	data, err := os.ReadFile(keypath)
	if err != nil {
		return nil, err
	}

	var config struct{ Endpoint, Key, Secret string }
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Key, config.Secret, ""),
		Secure: true,
	})
	if err != nil {
		return nil, err
	}

	client.SetAppInfo("OSMExpireBuilder", "0.1")
	return client, nil
}

// PutInStorage uploads a finished tile list.
func PutInStorage(ctx context.Context, storage Storage, localpath, bucket, remotepath string) error {
	exists, err := storage.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("storage bucket %q does not exist", bucket)
	}
	opts := minio.PutObjectOptions{ContentType: "text/plain"}
	_, err = storage.FPutObject(ctx, bucket, remotepath, localpath, opts)
	return err
}
