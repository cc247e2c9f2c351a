package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlipImage is an uploaded evidence image before normalization
type SlipImage struct {
	Data        []byte
	ContentType string
	Filename    string
}

// EvidenceStore keeps slip images in object storage
type EvidenceStore interface {
	// StoreSlip normalizes and uploads the image and returns its object key
	StoreSlip(ctx context.Context, projectID, paymentID uuid.UUID, image SlipImage) (string, error)
	// SlipURL returns a time-limited retrieval URL for key
	SlipURL(ctx context.Context, key string) (string, time.Time, error)
	DeleteSlips(ctx context.Context, keys []string) error
}

// IdempotencyStore deduplicates redelivered payment submissions from messaging channels
type IdempotencyStore interface {
	// Reserve claims key for value. When the key is already claimed it returns the stored value and false.
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (existing string, reserved bool, err error)
	Release(ctx context.Context, key string) error
}

// Metrics receives payment and reconciliation measurements
type Metrics interface {
	PaymentRecorded(ctx context.Context, method string)
	PaymentReviewed(ctx context.Context, approved bool)
	SlipUploadFailed(ctx context.Context)
	Reconciled(ctx context.Context, d time.Duration, receiptAction string)
}

type noopMetrics struct{}

func (noopMetrics) PaymentRecorded(context.Context, string)           {}
func (noopMetrics) PaymentReviewed(context.Context, bool)             {}
func (noopMetrics) SlipUploadFailed(context.Context)                  {}
func (noopMetrics) Reconciled(context.Context, time.Duration, string) {}
