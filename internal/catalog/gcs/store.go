// Package gcs provides a catalog store backed by Google Cloud Storage.
// Object writes commit atomically on Close, so a concurrent reader of
// the output object never observes a partial catalog.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/snapfresh/snapfresh/internal/catalog"
	"github.com/snapfresh/snapfresh/internal/refresh"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// Store reads and writes catalogs as objects in a configured bucket.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed catalog store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Load reads and decodes the catalog object at path.
func (s *Store) Load(ctx context.Context, path string) ([]refresh.Entry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object gs://%s/%s: %w", s.bucket, path, err)
	}
	defer r.Close()
	return catalog.Decode(r)
}

// Save uploads the full catalog to path, replacing the previous object.
// The previous generation survives any failure: the document is encoded
// in memory before the object is opened, and a failed upload is aborted
// by canceling the writer's context rather than closed.
func (s *Store) Save(ctx context.Context, path string, entries []refresh.Entry) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	var buf bytes.Buffer
	if err := catalog.Encode(&buf, entries); err != nil {
		return err
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(writeCtx)
	w.ContentType = "application/json"
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Canceling before Close aborts the upload instead of
		// committing whatever was staged.
		cancel()
		_ = w.Close()
		return fmt.Errorf("write object gs://%s/%s: %w", s.bucket, path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit object gs://%s/%s: %w", s.bucket, path, err)
	}
	return nil
}
