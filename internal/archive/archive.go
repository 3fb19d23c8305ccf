// Package archive provides the optional durable audit trail. The
// in-memory stores remain the source of truth; the archive only appends
// what was screened, decided and alerted, so investigations survive a
// restart.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLArchive implements domain.Archiver using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLArchive struct {
	db     *sql.DB
	driver string
}

// New creates an archive based on configuration.
func New(cfg domain.ArchiveConfig) (domain.Archiver, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	a := &SQLArchive{db: db, driver: cfg.Driver}

	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return a, nil
}

func (a *SQLArchive) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := a.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction appends a screened transaction, replacing any previous
// record with the same id.
func (a *SQLArchive) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	city, country := "", ""
	if tx.Location != nil {
		city, country = tx.Location.City, tx.Location.Country
	}

	query := `
		INSERT INTO screened_transactions (
			id, user_id, amount, currency, merchant_id,
			timestamp, city, country, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := a.db.ExecContext(ctx, a.rebind(query),
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.MerchantID,
		tx.Timestamp, city, country, time.Now(),
	)
	return err
}

// SaveDecision appends a fraud decision.
func (a *SQLArchive) SaveDecision(ctx context.Context, decision *domain.FraudDecision) error {
	if decision == nil || decision.TransactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(decision.Reasons)
	rules, _ := json.Marshal(decision.TriggeredRules)

	fraud := 0
	if decision.Fraud {
		fraud = 1
	}

	query := `
		INSERT INTO decisions (
			transaction_id, fraud, risk_score, reasons, triggered_rules, archived_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	_, err := a.db.ExecContext(ctx, a.rebind(query),
		decision.TransactionID, fraud, decision.RiskScore,
		string(reasons), string(rules), time.Now(),
	)
	return err
}

// SaveAlert appends an alert, overwriting a previous record with the same
// id so status transitions and resolutions are reflected.
func (a *SQLArchive) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(alert.Reasons)
	rules, _ := json.Marshal(alert.TriggeredRules)

	query := `
		INSERT INTO alerts (
			id, transaction_id, user_id, amount, risk_score,
			reasons, triggered_rules, timestamp, created_at,
			status, alert_type, severity, description, resolution
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			resolution = excluded.resolution
	`

	_, err := a.db.ExecContext(ctx, a.rebind(query),
		alert.ID, alert.TransactionID, alert.UserID,
		alert.Amount, alert.RiskScore,
		string(reasons), string(rules),
		alert.Timestamp, alert.CreatedAt,
		alert.Status, alert.AlertType, alert.Severity,
		alert.Description, alert.Resolution,
	)
	return err
}

// GetAlert retrieves an archived alert by id, nil when absent.
func (a *SQLArchive) GetAlert(ctx context.Context, alertID string) (*domain.FraudAlert, error) {
	query := `
		SELECT id, transaction_id, user_id, amount, risk_score,
			   reasons, triggered_rules, timestamp, created_at,
			   status, alert_type, severity, description, resolution
		FROM alerts
		WHERE id = ?
	`

	row := a.db.QueryRowContext(ctx, a.rebind(query), alertID)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return alert, err
}

// ListAlerts returns archived alerts created at or after since, newest
// first.
func (a *SQLArchive) ListAlerts(ctx context.Context, since time.Time) ([]*domain.FraudAlert, error) {
	query := `
		SELECT id, transaction_id, user_id, amount, risk_score,
			   reasons, triggered_rules, timestamp, created_at,
			   status, alert_type, severity, description, resolution
		FROM alerts
		WHERE created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := a.db.QueryContext(ctx, a.rebind(query), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.FraudAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*domain.FraudAlert, error) {
	var alert domain.FraudAlert
	var reasons, rules string
	var alertType, description, resolution sql.NullString

	err := row.Scan(
		&alert.ID, &alert.TransactionID, &alert.UserID,
		&alert.Amount, &alert.RiskScore,
		&reasons, &rules,
		&alert.Timestamp, &alert.CreatedAt,
		&alert.Status, &alertType, &alert.Severity,
		&description, &resolution,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(reasons), &alert.Reasons)
	json.Unmarshal([]byte(rules), &alert.TriggeredRules)
	alert.AlertType = alertType.String
	alert.Description = description.String
	alert.Resolution = resolution.String

	return &alert, nil
}

// Ping checks database health.
func (a *SQLArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection.
func (a *SQLArchive) Close() error {
	return a.db.Close()
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func (a *SQLArchive) rebind(query string) string {
	if a.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
