// Package gcs archives fetched pages in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// Archive uploads page bodies to one bucket. Objects are written once and
// never rewritten; the fingerprint in the path keeps versions apart.
type Archive struct {
	bucket *storage.BucketHandle
	name   string
}

// New creates an Archive over the client's bucket.
func New(client *storage.Client, bucket string) (*Archive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Archive{bucket: client.Bucket(bucket), name: bucket}, nil
}

// PutObject uploads one page and returns its gs:// URI.
func (a *Archive) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	key := strings.TrimPrefix(strings.TrimSpace(path), "/")
	if key == "" {
		return "", fmt.Errorf("object path is required")
	}

	w := a.bucket.Object(key).NewWriter(ctx)
	// Pages are a few kilobytes; a single-request upload avoids the
	// default 16 MB chunking buffer.
	w.ChunkSize = 0
	if contentType != "" {
		w.ContentType = contentType
	}
	// Archive reads are forensic, never served hot.
	w.CacheControl = "no-store"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", a.name, key), nil
}
