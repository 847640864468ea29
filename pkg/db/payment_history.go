package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Metadata keys.
const (
	MetaLastSnapshotAt = "last_snapshot_at"
	MetaLastWatchAt    = "last_watch_at"
)

// Attempt is a recorded payment attempt.
type Attempt struct {
	ID           int64
	RequestID    string
	ExpenseID    string
	PaymentType  string
	Amount       float64
	Account      string
	Outcome      string
	ExpectedPaid sql.NullFloat64
	ActualPaid   sql.NullFloat64
	Error        string
	AttemptedAt  time.Time
}

// PaymentHistory manages payment attempt records.
type PaymentHistory struct {
	conn *Connection
}

// NewPaymentHistory creates a new PaymentHistory instance.
func NewPaymentHistory(conn *Connection) *PaymentHistory {
	return &PaymentHistory{conn: conn}
}

// RecordAttempt stores an attempt. Recording the same request id again
// updates the outcome of the existing row.
func (h *PaymentHistory) RecordAttempt(a Attempt) error {
	query := `
		INSERT INTO payment_attempts
			(request_id, expense_id, payment_type, amount, account, outcome, expected_paid, actual_paid, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			outcome = excluded.outcome,
			expected_paid = excluded.expected_paid,
			actual_paid = excluded.actual_paid,
			error = excluded.error,
			attempted_at = CURRENT_TIMESTAMP
	`

	_, err := h.conn.Exec(query,
		a.RequestID,
		a.ExpenseID,
		a.PaymentType,
		a.Amount,
		a.Account,
		a.Outcome,
		a.ExpectedPaid,
		a.ActualPaid,
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}

	return nil
}

const attemptColumns = `id, request_id, expense_id, payment_type, amount, account, outcome,
	expected_paid, actual_paid, error, attempted_at`

func scanAttempt(scan func(dest ...any) error) (Attempt, error) {
	var a Attempt
	err := scan(
		&a.ID,
		&a.RequestID,
		&a.ExpenseID,
		&a.PaymentType,
		&a.Amount,
		&a.Account,
		&a.Outcome,
		&a.ExpectedPaid,
		&a.ActualPaid,
		&a.Error,
		&a.AttemptedAt,
	)
	return a, err
}

// GetAttempt retrieves an attempt by request id. It returns nil when absent.
func (h *PaymentHistory) GetAttempt(requestID string) (*Attempt, error) {
	row := h.conn.QueryRow(`SELECT `+attemptColumns+` FROM payment_attempts WHERE request_id = ?`, requestID)

	a, err := scanAttempt(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment attempt: %w", err)
	}
	return &a, nil
}

// ListByExpense returns the attempts for an expense, newest first.
// An empty expenseID lists every attempt. limit <= 0 means no limit.
func (h *PaymentHistory) ListByExpense(expenseID string, limit int) ([]Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts`
	var args []any
	if expenseID != "" {
		query += ` WHERE expense_id = ?`
		args = append(args, expenseID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment attempts: %w", err)
	}

	return attempts, nil
}

// Stats summarizes recorded attempts.
type Stats struct {
	TotalAttempts int
	ByOutcome     map[string]int
	TotalPaid     float64 // sum of verified amounts
	LastAttempt   sql.NullString
}

// GetStats retrieves attempt statistics. verifiedOutcome names the outcome
// whose amounts count towards TotalPaid.
func (h *PaymentHistory) GetStats(verifiedOutcome string) (*Stats, error) {
	stats := Stats{ByOutcome: make(map[string]int)}

	rows, err := h.conn.Query(`SELECT outcome, COUNT(*) FROM payment_attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		stats.ByOutcome[outcome] = n
		stats.TotalAttempts += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcome counts: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM payment_attempts WHERE outcome = ?`, verifiedOutcome).
		Scan(&stats.TotalPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to sum verified payments: %w", err)
	}

	err = h.conn.QueryRow(`SELECT MAX(attempted_at) FROM payment_attempts`).Scan(&stats.LastAttempt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last attempt time: %w", err)
	}

	return &stats, nil
}

// GetMetadata retrieves a metadata value, or "" when unset.
func (h *PaymentHistory) GetMetadata(key string) (string, error) {
	var value string
	err := h.conn.QueryRow(`SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (h *PaymentHistory) SetMetadata(key, value string) error {
	query := `
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := h.conn.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
