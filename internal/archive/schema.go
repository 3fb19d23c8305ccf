package archive

// Schema definitions for the Kestrel audit archive.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS screened_transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    merchant_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    city TEXT,
    country TEXT,
    archived_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screened_tx_user ON screened_transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_screened_tx_timestamp ON screened_transactions(timestamp);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    transaction_id TEXT PRIMARY KEY,
    fraud INTEGER NOT NULL,
    risk_score INTEGER NOT NULL,
    reasons TEXT NOT NULL,
    triggered_rules TEXT NOT NULL,
    archived_at TIMESTAMP NOT NULL
);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    risk_score INTEGER NOT NULL,
    reasons TEXT NOT NULL,
    triggered_rules TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL,
    alert_type TEXT,
    severity TEXT NOT NULL,
    description TEXT,
    resolution TEXT
);

CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
`

// AllSchemas returns every schema statement in creation order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaDecisions,
		schemaAlerts,
	}
}
