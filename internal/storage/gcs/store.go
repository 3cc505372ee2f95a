// Package gcs implements objectstore.ObjectStore against Google Cloud
// Storage, for multi-node deployments sharing one artifact bucket.
package gcs

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
)

// Store uploads artifacts as objects in a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore creates a GCS-backed object store. The client is assumed to be
// authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewStore(ctx context.Context, bucketName string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &Store{client: client, bucket: bucketName}, nil
}

// Upload streams localPath's contents to storageKey within the bucket.
func (s *Store) Upload(ctx context.Context, localPath, storageKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	w := s.client.Bucket(s.bucket).Object(storageKey).NewWriter(ctx)
	if _, err := w.ReadFrom(f); err != nil {
		w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	return w.Close()
}

// Close releases the underlying GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}
