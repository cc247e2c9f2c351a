package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	TenantID      *uuid.UUID
	UnitID        *uuid.UUID
	BillingPeriod *BillingPeriod
	Status        *InvoiceStatus
}

// InvoiceRepository defines persistence operations for invoices.
// Find methods return (nil, nil) when the invoice does not exist in the project.
type InvoiceRepository interface {
	// FindByID loads an invoice with its line items
	FindByID(ctx context.Context, projectID, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate loads an invoice and holds a row lock on it until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, projectID, id uuid.UUID) (*Invoice, error)
	FindAll(ctx context.Context, projectID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)
	// FindIDs lists invoice IDs of a project, optionally restricted to a period; used by batch repair
	FindIDs(ctx context.Context, projectID uuid.UUID, period *BillingPeriod) ([]uuid.UUID, error)
	// Save inserts or updates the invoice and replaces its line items
	Save(ctx context.Context, invoice *Invoice) error
	// UpdateCollection writes only the reconciliation-derived columns (paid amount, status, version)
	UpdateCollection(ctx context.Context, invoice *Invoice) error
	NextInvoiceNumber(ctx context.Context, projectID uuid.UUID, period BillingPeriod) (string, error)
}
