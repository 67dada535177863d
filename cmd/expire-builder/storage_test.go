// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

type FakeStorageClient struct {
	Files map[string]string
}

func NewFakeStorageClient() *FakeStorageClient {
	return &FakeStorageClient{Files: make(map[string]string)}
}

func (s *FakeStorageClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return bucket == "osm-tiles", nil
}

func (s *FakeStorageClient) FPutObject(ctx context.Context, bucket, remotepath, localpath string,
	opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	s.Files[remotepath] = localpath
	return minio.UploadInfo{Bucket: bucket, Key: remotepath}, nil
}

func TestPutInStorage(t *testing.T) {
	ctx := context.Background()
	s := NewFakeStorageClient()

	err := PutInStorage(ctx, s, "expired.list", "osm-tiles", "lists/expired-20260806.list")
	require.NoError(t, err)
	require.Equal(t, "expired.list", s.Files["lists/expired-20260806.list"])

	err = PutInStorage(ctx, s, "expired.list", "missing-bucket", "lists/expired.list")
	require.Error(t, err)
}
