// Package storage keeps payment slip evidence in object storage.
package storage

import (
	"context"
	"time"
)

// ObjectStore is the subset of object storage the evidence store needs
type ObjectStore interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	// GenerateDownloadURL returns a time-limited GET URL; expiresIn <= 0 uses the store's default
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObjects(ctx context.Context, storageKeys []string) error
}
