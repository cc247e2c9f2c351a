// Package integration runs the billing core against a real PostgreSQL started with testcontainers.
// The suite is skipped under -short.
package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rentalops/backend/internal/infrastructure/migration"
	"github.com/rentalops/backend/internal/infrastructure/persistence"
	"github.com/rentalops/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestDB is a migrated database in its own container
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
}

// NewTestDB starts PostgreSQL, applies the embedded migrations and registers cleanup
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires Docker; skipped with -short")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("billing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrateDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(migrateDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up(), "Failed to run migrations")
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), persistence.GormConfig(zap.NewNop(), "silent"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{DB: db, SqlDB: sqlDB, DSN: dsn}
}

// SeedCompanyTerms stores a contract whose rent invoice totals 8550
// (10000 rent, 10% discount, 5% withholding)
func (tdb *TestDB) SeedCompanyTerms(t *testing.T, projectID, tenantID, unitID uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()
	row := models.ContractTermsModel{
		BaseModel:             models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ProjectID:             projectID,
		TenantID:              tenantID,
		UnitID:                unitID,
		BaseRent:              decimal.NewFromInt(10000),
		DiscountPercent:       decimal.NewFromInt(10),
		WithholdingTaxPercent: decimal.NewFromInt(5),
		TenantCategory:        "COMPANY",
		StartDate:             datatypes.Date(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	require.NoError(t, tdb.DB.Create(&row).Error)
}
