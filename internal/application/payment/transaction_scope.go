package payment

import (
	"context"

	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
)

// TransactionScope runs ledger mutations and the reconciliation they trigger in one database transaction.
// If fn returns an error everything it wrote is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to the current transaction.
// InvoiceRepo().FindByIDForUpdate holds the invoice row until the transaction ends, which is what serializes
// concurrent mutations of the same invoice.
type TransactionalRepositories interface {
	InvoiceRepo() billing.InvoiceRepository
	PaymentRepo() payment.PaymentRepository
	ReceiptRepo() payment.ReceiptRepository
}

// NoOpTransactionScope runs fn directly against the given repositories. Used in tests.
type NoOpTransactionScope struct {
	invoiceRepo billing.InvoiceRepository
	paymentRepo payment.PaymentRepository
	receiptRepo payment.ReceiptRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo payment.PaymentRepository,
	receiptRepo payment.ReceiptRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		receiptRepo: receiptRepo,
	}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository
func (s *NoOpTransactionScope) InvoiceRepo() billing.InvoiceRepository {
	return s.invoiceRepo
}

// PaymentRepo returns the payment repository
func (s *NoOpTransactionScope) PaymentRepo() payment.PaymentRepository {
	return s.paymentRepo
}

// ReceiptRepo returns the receipt repository
func (s *NoOpTransactionScope) ReceiptRepo() payment.ReceiptRepository {
	return s.receiptRepo
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
