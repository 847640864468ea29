// Package db provides SQLite storage for payment attempt history and metadata.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- One row per payment attempt, keyed by the mutation request id
CREATE TABLE IF NOT EXISTS payment_attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL UNIQUE,
    expense_id TEXT NOT NULL,
    payment_type TEXT NOT NULL,        -- 'installment', 'settle_all' or 'partial'
    amount REAL NOT NULL,
    account TEXT NOT NULL,
    outcome TEXT NOT NULL,             -- final state of the attempt
    expected_paid REAL,
    actual_paid REAL,
    error TEXT NOT NULL DEFAULT '',
    attempted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_payment_attempts_expense
    ON payment_attempts(expense_id);

CREATE INDEX IF NOT EXISTS idx_payment_attempts_outcome
    ON payment_attempts(outcome);

-- Key-value metadata (last snapshot, last watch run)
CREATE TABLE IF NOT EXISTS sync_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
