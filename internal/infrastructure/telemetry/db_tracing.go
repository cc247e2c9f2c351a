package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls gorm query tracing
type DBTracingConfig struct {
	Enabled bool
	DBName  string
	// IncludeVariables puts bound query values in spans; keep it off where payment data is real
	IncludeVariables bool
}

// RegisterDBTracing installs the otelgorm plugin so every query becomes a child span of the request
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register otelgorm: %w", err)
	}
	logger.Info("Database tracing enabled", zap.String("db_name", cfg.DBName))
	return nil
}
