package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
)

// EvidenceStore implements paymentapp.EvidenceStore: normalize, then upload under
// <prefix>/<project>/<payment>/<slip>.webp
type EvidenceStore struct {
	objects    ObjectStore
	normalizer *SlipNormalizer
	keyPrefix  string
	urlTTL     time.Duration
}

// NewEvidenceStore creates an EvidenceStore over any ObjectStore
func NewEvidenceStore(objects ObjectStore, normalizer *SlipNormalizer, keyPrefix string, urlTTL time.Duration) *EvidenceStore {
	if normalizer == nil {
		normalizer = NewSlipNormalizer(0, 0)
	}
	return &EvidenceStore{objects: objects, normalizer: normalizer, keyPrefix: keyPrefix, urlTTL: urlTTL}
}

// StoreSlip normalizes and uploads the image and returns its object key
func (e *EvidenceStore) StoreSlip(ctx context.Context, projectID, paymentID uuid.UUID, img paymentapp.SlipImage) (string, error) {
	data, err := e.normalizer.Normalize(img.Data)
	if err != nil {
		return "", err
	}
	key := path.Join(e.keyPrefix, projectID.String(), paymentID.String(), uuid.NewString()+".webp")
	if err := e.objects.Upload(ctx, key, data, SlipContentType); err != nil {
		return "", fmt.Errorf("store slip %s: %w", key, err)
	}
	return key, nil
}

// SlipURL returns a time-limited retrieval URL for key
func (e *EvidenceStore) SlipURL(ctx context.Context, key string) (string, time.Time, error) {
	return e.objects.GenerateDownloadURL(ctx, key, e.urlTTL)
}

// DeleteSlips removes slip objects
func (e *EvidenceStore) DeleteSlips(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return e.objects.DeleteObjects(ctx, keys)
}

var _ paymentapp.EvidenceStore = (*EvidenceStore)(nil)
