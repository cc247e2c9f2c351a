package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
)

// SnapshotQuery selects the invoices a summary is built from. Nil fields do not filter.
type SnapshotQuery struct {
	ProjectID   *uuid.UUID
	StartPeriod *billing.BillingPeriod
	EndPeriod   *billing.BillingPeriod
}

// SnapshotSource loads invoice snapshots together with their verified-payment counts
type SnapshotSource interface {
	LoadSnapshots(ctx context.Context, query SnapshotQuery) ([]InvoiceSnapshot, error)
}
