package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newSQLiteDB opens a private in-memory database with the billing schema.
// A single connection keeps every statement, transactional or not, on the same database.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

// newMockGormDB wraps sqlmock in the postgres dialector so tests can assert generated SQL
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func companyTerms(projectID uuid.UUID) billing.ContractTerms {
	return billing.ContractTerms{
		ProjectID:             projectID,
		TenantID:              uuid.New(),
		UnitID:                uuid.New(),
		BaseRent:              dec("10000"),
		DiscountPercent:       dec("10"),
		WithholdingTaxPercent: dec("5"),
		Category:              billing.TenantCategoryCompany,
		StartDate:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestInvoice(t *testing.T, projectID uuid.UUID, number, period string) *billing.Invoice {
	t.Helper()
	terms := companyTerms(projectID)
	p := billing.MustParseBillingPeriod(period)
	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		ProjectID:     projectID,
		InvoiceNumber: number,
		Terms:         terms,
		Type:          billing.InvoiceTypeRent,
		BillingPeriod: p,
		DueDate:       p.Start().AddDate(0, 0, 4),
		Composition:   billing.Compose(terms, nil, billing.InvoiceTypeRent, p),
	})
	require.NoError(t, err)
	return inv
}
