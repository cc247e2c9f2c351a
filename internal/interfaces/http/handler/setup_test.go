package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/rentalops/backend/internal/application/billing"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	reportapp "github.com/rentalops/backend/internal/application/report"
	"github.com/rentalops/backend/internal/infrastructure/cache"
	"github.com/rentalops/backend/internal/infrastructure/event"
	"github.com/rentalops/backend/internal/infrastructure/persistence"
	"github.com/rentalops/backend/internal/infrastructure/persistence/models"
	"github.com/rentalops/backend/internal/infrastructure/storage"
	"github.com/rentalops/backend/internal/interfaces/http/dto"
	"github.com/rentalops/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// testServer wires the billing services over an in-memory database the way the server does
type testServer struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	objects   storage.ObjectStore
	projectID uuid.UUID
	tenantID  uuid.UUID
	unitID    uuid.UUID
}

type serverOption func(*testServer)

func withObjectStore(objects storage.ObjectStore) serverOption {
	return func(s *testServer) { s.objects = objects }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	s := &testServer{
		t:         t,
		objects:   storage.NewMemoryObjectStorage(),
		projectID: uuid.New(),
		tenantID:  uuid.New(),
		unitID:    uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.ContractTermsModel{},
		&models.MeterReadingModel{},
		&models.InvoiceModel{},
		&models.InvoiceLineItemModel{},
		&models.PaymentModel{},
		&models.PaymentSlipModel{},
		&models.ReceiptModel{},
	))
	s.db = db
	s.seedTerms()

	bus := event.NewInMemoryEventBus(nil)
	require.NoError(t, bus.Start(context.Background()))
	summaryCache := cache.NewMemorySummaryCache()
	bus.Subscribe(reportapp.NewSummaryInvalidationHandler(summaryCache, nil))

	invoiceRepo := persistence.NewGormInvoiceRepository(db, "INV")
	reconciler := paymentapp.NewReconciliationService(paymentapp.ReconciliationServiceConfig{
		TxScope:        persistence.NewGormTransactionScope(db, "INV"),
		EventPublisher: bus,
	})
	invoiceService := billingapp.NewInvoiceService(billingapp.InvoiceServiceConfig{
		InvoiceRepo:    invoiceRepo,
		Terms:          persistence.NewGormContractTermsReader(db),
		Meters:         persistence.NewGormMeterReadingReader(db),
		Reconciler:     reconciler,
		EventPublisher: bus,
	})
	paymentService := paymentapp.NewPaymentService(paymentapp.PaymentServiceConfig{
		Reconciler:     reconciler,
		PaymentRepo:    persistence.NewGormPaymentRepository(db),
		InvoiceRepo:    invoiceRepo,
		Evidence:       storage.NewEvidenceStore(s.objects, storage.NewSlipNormalizer(0, 0), "slips", time.Minute),
		Idempotency:    cache.NewInMemoryIdempotencyStore(),
		EventPublisher: bus,
	})
	summaryService := reportapp.NewSummaryService(reportapp.SummaryServiceConfig{
		Source: persistence.NewGormSnapshotSource(db),
		Cache:  summaryCache,
	})

	invoices := NewInvoiceHandler(invoiceService, reconciler)
	payments := NewPaymentHandler(paymentService)
	summary := NewSummaryHandler(summaryService)
	system := NewSystemHandler(sqlDB, "rentalops-billing", "test")

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/health", system.Health)

	api := r.Group("/api/v1/billing")
	api.GET("/summary", middleware.OptionalProjectScope(), summary.Get)

	scoped := api.Group("", middleware.ProjectScope())
	scoped.POST("/invoices", invoices.Compose)
	scoped.GET("/invoices", invoices.List)
	scoped.GET("/invoices/:id", invoices.Get)
	scoped.PUT("/invoices/:id", invoices.Recompose)
	scoped.POST("/invoices/:id/cancel", invoices.Cancel)
	scoped.POST("/invoices/:id/reconcile", invoices.Reconcile)
	scoped.POST("/invoices/:id/payments", payments.Record)
	scoped.GET("/invoices/:id/payments", payments.List)
	scoped.GET("/payments/:id", payments.Get)
	scoped.PUT("/payments/:id", payments.Update)
	scoped.DELETE("/payments/:id", payments.Delete)
	scoped.POST("/payments/:id/verify", payments.Verify)
	scoped.POST("/payments/:id/slips", payments.AttachSlip)
	scoped.GET("/payments/:id/slips/:slipId/url", payments.SlipURL)

	s.router = r
	return s
}

// seedTerms stores a company contract: 10000 rent, 10% discount, 5% withholding, so a rent invoice totals 8550
func (s *testServer) seedTerms() {
	now := time.Now()
	row := models.ContractTermsModel{
		BaseModel:             models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ProjectID:             s.projectID,
		TenantID:              s.tenantID,
		UnitID:                s.unitID,
		BaseRent:              decimal.NewFromInt(10000),
		DiscountPercent:       decimal.NewFromInt(10),
		WithholdingTaxPercent: decimal.NewFromInt(5),
		TenantCategory:        "COMPANY",
		StartDate:             datatypes.Date(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	require.NoError(s.t, s.db.Create(&row).Error)
}

// do sends a JSON request scoped to the server's project
func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ProjectIDHeader, s.projectID.String())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// composeRent composes a rent invoice for March 2024 and returns its response
func (s *testServer) composeRent() dto.InvoiceResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/billing/invoices", map[string]any{
		"tenant_id":      s.tenantID,
		"unit_id":        s.unitID,
		"type":           "RENT",
		"billing_period": "2024-03",
		"due_date":       "2024-03-05",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var inv dto.InvoiceResponse
	decodeData(s.t, w, &inv)
	return inv
}

// recordPayment records a payment without evidence and returns it
func (s *testServer) recordPayment(invoiceID uuid.UUID, amount string) dto.PaymentResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/billing/invoices/"+invoiceID.String()+"/payments", map[string]any{
		"amount": amount,
		"method": "BANK_TRANSFER",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.RecordPaymentResponse
	decodeData(s.t, w, &resp)
	return resp.Payment
}

// decodeData unmarshals the data member of a success envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// decodeError returns the error member of a failure envelope
func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error, w.Body.String())
	return *resp.Error
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// unavailableObjects fails every upload, standing in for an unreachable bucket
type unavailableObjects struct{}

func (unavailableObjects) Upload(context.Context, string, []byte, string) error {
	return errors.New("bucket unreachable")
}

func (unavailableObjects) GenerateDownloadURL(context.Context, string, time.Duration) (string, time.Time, error) {
	return "", time.Time{}, errors.New("bucket unreachable")
}

func (unavailableObjects) DeleteObjects(context.Context, []string) error {
	return nil
}

func jsonUnmarshal(w *httptest.ResponseRecorder, out any) error {
	return json.Unmarshal(w.Body.Bytes(), out)
}
