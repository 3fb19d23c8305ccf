package domain

import (
	"context"
	"time"
)

// Archiver is an optional durable audit trail for screened transactions
// and alerts. The in-memory stores remain the source of truth; the archive
// is append-mostly and its absence never changes screening behavior.
type Archiver interface {
	SaveTransaction(ctx context.Context, tx *Transaction) error
	SaveDecision(ctx context.Context, decision *FraudDecision) error
	SaveAlert(ctx context.Context, alert *FraudAlert) error

	// GetAlert retrieves an archived alert by id, nil when absent.
	GetAlert(ctx context.Context, alertID string) (*FraudAlert, error)

	// ListAlerts returns archived alerts created at or after since.
	ListAlerts(ctx context.Context, since time.Time) ([]*FraudAlert, error)

	// Ping reports archive health.
	Ping(ctx context.Context) error

	Close() error
}

// ArchiveConfig holds configuration for archive initialization.
type ArchiveConfig struct {
	// Enabled toggles the archive entirely.
	Enabled bool

	// Driver is the database driver: "sqlite" or "postgres".
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
