package payment

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// In-memory repositories. They hand out copies so services cannot mutate stored state by accident.
// =============================================================================

type memStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	invoices map[uuid.UUID]billing.Invoice
	payments map[uuid.UUID]payment.Payment
	receipts map[uuid.UUID]payment.Receipt // keyed by invoice ID
	// failUpdateCollection makes UpdateCollection fail, for rollback-path tests
	failUpdateCollection error
}

func newMemStore() *memStore {
	return &memStore{
		invoices: map[uuid.UUID]billing.Invoice{},
		payments: map[uuid.UUID]payment.Payment{},
		receipts: map[uuid.UUID]payment.Receipt{},
	}
}

func (m *memStore) InvoiceRepo() billing.InvoiceRepository { return memInvoiceRepo{m} }
func (m *memStore) PaymentRepo() payment.PaymentRepository { return memPaymentRepo{m} }
func (m *memStore) ReceiptRepo() payment.ReceiptRepository { return memReceiptRepo{m} }

// Execute serializes whole transactions, mirroring the row lock, and discards writes on error
func (m *memStore) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.invoices, m.payments, m.receipts = snapshot.invoices, snapshot.payments, snapshot.receipts
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range m.invoices {
		c.invoices[k] = v
	}
	for k, v := range m.payments {
		c.payments[k] = v
	}
	for k, v := range m.receipts {
		c.receipts[k] = v
	}
	return c
}

func copyInvoice(inv billing.Invoice) *billing.Invoice {
	inv.LineItems = append([]billing.LineItem(nil), inv.LineItems...)
	inv.ClearDomainEvents()
	return &inv
}

func copyPayment(p payment.Payment) *payment.Payment {
	p.Slips = append([]payment.Slip(nil), p.Slips...)
	p.ClearDomainEvents()
	return &p
}

type memInvoiceRepo struct{ m *memStore }

func (r memInvoiceRepo) FindByID(_ context.Context, projectID, id uuid.UUID) (*billing.Invoice, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	inv, ok := r.m.invoices[id]
	if !ok || inv.ProjectID != projectID {
		return nil, nil
	}
	return copyInvoice(inv), nil
}

func (r memInvoiceRepo) FindByIDForUpdate(ctx context.Context, projectID, id uuid.UUID) (*billing.Invoice, error) {
	return r.FindByID(ctx, projectID, id)
}

func (r memInvoiceRepo) FindAll(_ context.Context, projectID uuid.UUID, _ billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.m.invoices {
		if inv.ProjectID == projectID {
			out = append(out, *copyInvoice(inv))
		}
	}
	return out, int64(len(out)), nil
}

func (r memInvoiceRepo) FindIDs(_ context.Context, projectID uuid.UUID, period *billing.BillingPeriod) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uuid.UUID
	for id, inv := range r.m.invoices {
		if inv.ProjectID == projectID && (period == nil || inv.BillingPeriod == *period) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.invoices[inv.ID] = *copyInvoice(*inv)
	return nil
}

func (r memInvoiceRepo) UpdateCollection(_ context.Context, inv *billing.Invoice) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failUpdateCollection != nil {
		return r.m.failUpdateCollection
	}
	stored := r.m.invoices[inv.ID]
	stored.PaidAmount = inv.PaidAmount
	stored.Status = inv.Status
	stored.Version = inv.Version
	r.m.invoices[inv.ID] = stored
	return nil
}

func (r memInvoiceRepo) NextInvoiceNumber(_ context.Context, _ uuid.UUID, period billing.BillingPeriod) (string, error) {
	return "INV-" + period.String() + "-0001", nil
}

type memPaymentRepo struct{ m *memStore }

func (r memPaymentRepo) FindByID(_ context.Context, projectID, id uuid.UUID) (*payment.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok || p.ProjectID != projectID {
		return nil, nil
	}
	return copyPayment(p), nil
}

func (r memPaymentRepo) FindByInvoice(_ context.Context, projectID, invoiceID uuid.UUID) ([]payment.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []payment.Payment
	for _, p := range r.m.payments {
		if p.ProjectID == projectID && p.InvoiceID == invoiceID {
			out = append(out, *copyPayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memPaymentRepo) Save(_ context.Context, p *payment.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payments[p.ID] = *copyPayment(*p)
	return nil
}

func (r memPaymentRepo) AddSlip(_ context.Context, slip *payment.Slip) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[slip.PaymentID]
	if !ok {
		return shared.NewNotFoundError("Payment")
	}
	p.Slips = append(append([]payment.Slip(nil), p.Slips...), *slip)
	r.m.payments[p.ID] = p
	return nil
}

func (r memPaymentRepo) Delete(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.payments, id)
	return nil
}

type memReceiptRepo struct{ m *memStore }

func (r memReceiptRepo) FindByInvoice(_ context.Context, _ uuid.UUID, invoiceID uuid.UUID) (*payment.Receipt, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rc, ok := r.m.receipts[invoiceID]
	if !ok {
		return nil, nil
	}
	return &rc, nil
}

func (r memReceiptRepo) Save(_ context.Context, rc *payment.Receipt) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.receipts[rc.InvoiceID] = *rc
	return nil
}

func (r memReceiptRepo) Delete(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for k, rc := range r.m.receipts {
		if rc.ID == id {
			delete(r.m.receipts, k)
		}
	}
	return nil
}

// =============================================================================
// Mocks for collaborators
// =============================================================================

type MockEvidenceStore struct {
	mock.Mock
}

func (m *MockEvidenceStore) StoreSlip(ctx context.Context, projectID, paymentID uuid.UUID, image SlipImage) (string, error) {
	args := m.Called(ctx, projectID, paymentID, image)
	return args.String(0), args.Error(1)
}

func (m *MockEvidenceStore) SlipURL(ctx context.Context, key string) (string, time.Time, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockEvidenceStore) DeleteSlips(ctx context.Context, keys []string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Reserve(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// recordingPublisher keeps every published event type in order
type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range events {
		p.types = append(p.types, e.EventType())
	}
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

// =============================================================================
// Fixtures
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store      *memStore
	publisher  *recordingPublisher
	evidence   *MockEvidenceStore
	reconciler *ReconciliationService
	svc        *PaymentService
	projectID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		publisher: &recordingPublisher{},
		evidence:  new(MockEvidenceStore),
		projectID: uuid.New(),
	}
	f.reconciler = NewReconciliationService(ReconciliationServiceConfig{
		TxScope:        f.store,
		EventPublisher: f.publisher,
	})
	f.svc = NewPaymentService(PaymentServiceConfig{
		Reconciler:     f.reconciler,
		PaymentRepo:    f.store.PaymentRepo(),
		InvoiceRepo:    f.store.InvoiceRepo(),
		Evidence:       f.evidence,
		EventPublisher: f.publisher,
	})
	return f
}

// seedInvoice stores the invoice of scenario 1: a 10000 rent with 10% off for a company withheld at 5%, total 8550
func (f *fixture) seedInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	terms := billing.ContractTerms{
		ProjectID:             f.projectID,
		TenantID:              uuid.New(),
		UnitID:                uuid.New(),
		BaseRent:              dec("10000"),
		DiscountPercent:       dec("10"),
		WithholdingTaxPercent: dec("5"),
		Category:              billing.TenantCategoryCompany,
	}
	period := billing.MustParseBillingPeriod("2024-03")
	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		ProjectID:     f.projectID,
		InvoiceNumber: "INV-202403-0001",
		Terms:         terms,
		Type:          billing.InvoiceTypeRent,
		BillingPeriod: period,
		DueDate:       time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Composition:   billing.Compose(terms, nil, billing.InvoiceTypeRent, period),
	})
	require.NoError(t, err)
	require.True(t, inv.TotalAmount.Equal(dec("8550")))
	require.NoError(t, f.store.InvoiceRepo().Save(context.Background(), inv))
	return inv
}

func (f *fixture) record(t *testing.T, inv *billing.Invoice, amount string) *payment.Payment {
	t.Helper()
	res, err := f.svc.RecordPayment(context.Background(), RecordPaymentInput{
		ProjectID: f.projectID,
		InvoiceID: inv.ID,
		Amount:    dec(amount),
		Method:    "bank_transfer",
	})
	require.NoError(t, err)
	return res.Payment
}

func (f *fixture) receipt(inv *billing.Invoice) *payment.Receipt {
	rc, _ := f.store.ReceiptRepo().FindByInvoice(context.Background(), f.projectID, inv.ID)
	return rc
}

func (f *fixture) invoice(inv *billing.Invoice) *billing.Invoice {
	stored, _ := f.store.InvoiceRepo().FindByID(context.Background(), f.projectID, inv.ID)
	return stored
}
