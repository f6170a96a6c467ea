package repository

import (
	"context"
	"fmt"

	"impact-service/internal/database/minio"
)

// ObjectStorage is the subset of the MinIO client the fact-pack store uses.
type ObjectStorage interface {
	UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error
	GetBytes(ctx context.Context, bucketName, objectName string) ([]byte, bool, error)
	ListObjectNames(ctx context.Context, bucketName, prefix string) ([]string, error)
}

// FactPackStore keeps published fact packs as JSON objects in one bucket.
type FactPackStore struct {
	storage ObjectStorage
	bucket  string
}

func NewFactPackStore(storage ObjectStorage) *FactPackStore {
	return &FactPackStore{storage: storage, bucket: minio.Storage.FactPacks}
}

// Put writes the pack and returns its location as bucket/key.
func (s *FactPackStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := s.storage.UploadBytes(ctx, s.bucket, key, data, "application/json"); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", s.bucket, key), nil
}

func (s *FactPackStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.storage.GetBytes(ctx, s.bucket, key)
}

func (s *FactPackStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.storage.ListObjectNames(ctx, s.bucket, prefix)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
