package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

// timeLayout is fixed width so stored instants sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SQL exposes the pool for stats collection.
func (db *DB) SQL() *sql.DB {
	return db.conn
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			merchant_name TEXT NOT NULL,
			merchant_category TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			location TEXT NOT NULL,
			country TEXT NOT NULL,
			device_id TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			status TEXT NOT NULL,
			risk_score REAL,
			classification TEXT,
			reasons TEXT,
			assessed_at TEXT,
			admin_notes TEXT NOT NULL DEFAULT '',
			admin_override INTEGER NOT NULL DEFAULT 0,
			updated_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_txn_user_occurred ON transactions(user_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_txn_occurred ON transactions(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_txn_classification ON transactions(classification)`,
		`CREATE TABLE IF NOT EXISTS fraud_logs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			risk_score REAL,
			classification TEXT,
			reasons TEXT,
			action TEXT NOT NULL,
			admin_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_transaction ON fraud_logs(transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_user ON fraud_logs(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

const transactionColumns = `id, user_id, amount, currency, merchant_name, merchant_category,
	payment_method, location, country, device_id, occurred_at, status,
	risk_score, classification, reasons, assessed_at,
	admin_notes, admin_override, updated_by, created_at, updated_at`

// InsertScoredTransaction stores a scored transaction and its decision log
// entry atomically.
func (db *DB) InsertScoredTransaction(ctx context.Context, txn models.Transaction, entry models.FraudLog) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		score          sql.NullFloat64
		classification sql.NullString
		reasons        sql.NullString
		assessedAt     sql.NullString
	)
	if a := txn.FraudStatus; a != nil {
		score = sql.NullFloat64{Float64: a.Score, Valid: true}
		classification = sql.NullString{String: string(a.Classification), Valid: true}
		reasons = sql.NullString{String: encodeReasons(a.Reasons), Valid: true}
		assessedAt = sql.NullString{String: formatTime(a.Timestamp), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.Amount,
		txn.Currency,
		txn.MerchantName,
		txn.MerchantCategory,
		txn.PaymentMethod,
		txn.Location,
		txn.Country,
		txn.DeviceID,
		formatTime(txn.Timestamp),
		string(txn.Status),
		score,
		classification,
		reasons,
		assessedAt,
		txn.AdminNotes,
		txn.AdminOverride,
		txn.UpdatedBy,
		formatTime(txn.CreatedAt),
		nullTime(txn.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}

	if err := insertLog(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetUserHistory returns every stored transaction of a user, oldest first.
// Ties on the instant keep insertion order.
func (db *DB) GetUserHistory(ctx context.Context, userID string) ([]models.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ?
		ORDER BY occurred_at, seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user history: %w", err)
	}
	return collectTransactions(rows)
}

// GetTransaction returns one transaction by id.
func (db *DB) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	UserID          string
	Classifications []models.Classification
	Status          models.Status
	From            time.Time // inclusive
	To              time.Time // exclusive
	Limit           int
}

// ListTransactions returns matching transactions, newest first.
func (db *DB) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Classifications) > 0 {
		where = append(where, "classification IN ("+placeholders(len(f.Classifications))+")")
		for _, c := range f.Classifications {
			args = append(args, string(c))
		}
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "occurred_at < ?")
		args = append(args, formatTime(f.To))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at DESC, seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return collectTransactions(rows)
}

// ListFraudCases returns suspicious and fraudulent transactions, newest first.
func (db *DB) ListFraudCases(ctx context.Context, limit int) ([]models.Transaction, error) {
	return db.ListTransactions(ctx, TransactionFilter{
		Classifications: []models.Classification{models.ClassificationSuspicious, models.ClassificationFraudulent},
		Limit:           limit,
	})
}

// StatusUpdate describes an operational status change. The stored
// assessment is never modified.
type StatusUpdate struct {
	ID       string
	Status   models.Status
	Notes    string
	By       string
	Override bool
	At       time.Time
}

// UpdateStatus applies u and appends entry to the fraud log in one database
// transaction, returning the updated record.
func (db *DB) UpdateStatus(ctx context.Context, u StatusUpdate, entry models.FraudLog) (models.Transaction, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE transactions SET
			status = ?,
			admin_notes = ?,
			admin_override = admin_override OR ?,
			updated_by = ?,
			updated_at = ?
		WHERE id = ?`,
		string(u.Status), u.Notes, u.Override, u.By, formatTime(u.At), u.ID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to update transaction %s: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", u.ID, ErrNotFound)
	}

	if err := insertLog(ctx, tx, entry); err != nil {
		return models.Transaction{}, err
	}

	txn, err := scanTransaction(tx.QueryRowContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions WHERE id = ?`, u.ID))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to reload transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return txn, nil
}

// LogFilter narrows ListFraudLogs.
type LogFilter struct {
	TransactionID string
	UserID        string
	Limit         int
}

// ListFraudLogs returns log entries, newest first.
func (db *DB) ListFraudLogs(ctx context.Context, f LogFilter) ([]models.FraudLog, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.TransactionID != "" {
		where = append(where, "transaction_id = ?")
		args = append(args, f.TransactionID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}

	query := `SELECT id, transaction_id, user_id, risk_score, classification, reasons,
		action, admin_id, notes, created_at FROM fraud_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud logs: %w", err)
	}
	defer rows.Close()

	logs := []models.FraudLog{}
	for rows.Next() {
		var (
			entry          models.FraudLog
			score          sql.NullFloat64
			classification sql.NullString
			reasons        sql.NullString
			createdAt      string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TransactionID,
			&entry.UserID,
			&score,
			&classification,
			&reasons,
			&entry.Action,
			&entry.AdminID,
			&entry.Notes,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fraud log: %w", err)
		}
		if score.Valid {
			v := score.Float64
			entry.RiskScore = &v
		}
		entry.Classification = models.Classification(classification.String)
		entry.Reasons = decodeReasons(reasons.String)
		if entry.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fraud logs: %w", err)
	}
	return logs, nil
}

func insertLog(ctx context.Context, tx *sql.Tx, entry models.FraudLog) error {
	var score sql.NullFloat64
	if entry.RiskScore != nil {
		score = sql.NullFloat64{Float64: *entry.RiskScore, Valid: true}
	}
	var classification, reasons sql.NullString
	if entry.Classification != "" {
		classification = sql.NullString{String: string(entry.Classification), Valid: true}
	}
	if entry.Reasons != nil {
		reasons = sql.NullString{String: encodeReasons(entry.Reasons), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO fraud_logs (
		id, transaction_id, user_id, risk_score, classification, reasons,
		action, admin_id, notes, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TransactionID,
		entry.UserID,
		score,
		classification,
		reasons,
		entry.Action,
		entry.AdminID,
		entry.Notes,
		formatTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fraud log %s: %w", entry.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (models.Transaction, error) {
	var (
		txn            models.Transaction
		status         string
		occurredAt     string
		score          sql.NullFloat64
		classification sql.NullString
		reasons        sql.NullString
		assessedAt     sql.NullString
		createdAt      string
		updatedAt      sql.NullString
	)
	err := s.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Amount,
		&txn.Currency,
		&txn.MerchantName,
		&txn.MerchantCategory,
		&txn.PaymentMethod,
		&txn.Location,
		&txn.Country,
		&txn.DeviceID,
		&occurredAt,
		&status,
		&score,
		&classification,
		&reasons,
		&assessedAt,
		&txn.AdminNotes,
		&txn.AdminOverride,
		&txn.UpdatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return models.Transaction{}, err
	}

	txn.Status = models.Status(status)
	if txn.Timestamp, err = parseTime(occurredAt); err != nil {
		return models.Transaction{}, err
	}
	if txn.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Transaction{}, err
	}
	if updatedAt.Valid {
		t, err := parseTime(updatedAt.String)
		if err != nil {
			return models.Transaction{}, err
		}
		txn.UpdatedAt = &t
	}
	if classification.Valid {
		a := &models.FraudAssessment{
			Score:          score.Float64,
			Classification: models.Classification(classification.String),
			Reasons:        decodeReasons(reasons.String),
		}
		if assessedAt.Valid {
			if a.Timestamp, err = parseTime(assessedAt.String); err != nil {
				return models.Transaction{}, err
			}
		}
		txn.FraudStatus = a
	}
	return txn, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// encodeReasons stores reason lists as JSON arrays.
func encodeReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "[]"
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeReasons(serialized string) []string {
	if serialized == "" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(serialized), &result); err != nil {
		return nil
	}
	return result
}
