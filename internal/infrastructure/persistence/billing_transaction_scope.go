package persistence

import (
	"context"

	paymentapp "github.com/rentalops/backend/internal/application/payment"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
	"gorm.io/gorm"
)

// GormTransactionScope implements paymentapp.TransactionScope using GORM transactions.
// Repositories handed to fn share the transaction, so an invoice row locked through
// InvoiceRepo().FindByIDForUpdate stays locked until fn returns.
type GormTransactionScope struct {
	db                  *gorm.DB
	invoiceNumberPrefix string
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, invoiceNumberPrefix string) *GormTransactionScope {
	return &GormTransactionScope{db: db, invoiceNumberPrefix: invoiceNumberPrefix}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos paymentapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, invoiceNumberPrefix: s.invoiceNumberPrefix})
	})
}

type gormTransactionalRepositories struct {
	tx                  *gorm.DB
	invoiceNumberPrefix string
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) InvoiceRepo() billing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx, r.invoiceNumberPrefix)
}

// PaymentRepo returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PaymentRepo() payment.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// ReceiptRepo returns the receipt repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ReceiptRepo() payment.ReceiptRepository {
	return NewGormReceiptRepository(r.tx)
}

var (
	_ paymentapp.TransactionScope          = (*GormTransactionScope)(nil)
	_ paymentapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
