package postgres

import (
	"context"
	"fmt"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthCheck implements ports.HealthChecker for PostgreSQL. Besides
// connectivity it reports a schema that lags the embedded migrations.
type HealthCheck struct {
	pool     Pool
	expected int
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	migrations, _ := migrationSource().FindMigrations()
	return &HealthCheck{pool: pool, expected: len(migrations)}
}

// Ping counts the applied migrations recorded by sql-migrate.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var applied int
	if err := h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM gorp_migrations").Scan(&applied); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if applied < h.expected {
		return fmt.Errorf("schema behind: %d of %d migrations applied", applied, h.expected)
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
