// Package sqlite implements the fact store on SQLite via database/sql.
// Partition replacement runs DELETE + batched prepared INSERTs inside a
// single transaction; SQLite has no bulk-load API like Postgres COPY, but a
// transaction keeps the replace atomic and performance acceptable for batch
// volumes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"retailfact/internal/clean"
	"retailfact/internal/schema"
	"retailfact/internal/storage"
)

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.
	//   "file:retail.db?cache=shared"
	//   "file::memory:?cache=shared" (tests)
	DSN string
}

// Repository is the SQLite-backed storage.Store.
type Repository struct {
	db *sql.DB
}

var _ storage.Store = (*Repository)(nil)

// NewRepository opens the database and pings it to fail fast on bad DSNs.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() { r.db.Close() }

// EnsureSchema creates the fact and anomaly tables when absent, plus the
// partition-pruning index on purchase_date.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + storage.FactTable + ` (
			order_id TEXT NOT NULL,
			order_item_id INTEGER NOT NULL,
			customer_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_category_name TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			price REAL NOT NULL,
			freight_value REAL NOT NULL,
			payment_sequential INTEGER NOT NULL,
			payment_type TEXT NOT NULL,
			payment_value REAL NOT NULL,
			order_purchase_timestamp TEXT NOT NULL,
			purchase_date TEXT NOT NULL,
			unknown_category INTEGER NOT NULL,
			multi_payment INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fact_purchase_date ON ` + storage.FactTable + ` (purchase_date)`,
		`CREATE TABLE IF NOT EXISTS ` + storage.AnomalyTable + ` (
			entity TEXT NOT NULL,
			reason TEXT NOT NULL,
			order_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			line INTEGER NOT NULL,
			price REAL NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite: ensure schema: %w", err)
		}
	}
	return nil
}

// ReplacePartition atomically swaps the contents of one date partition:
// DELETE + INSERTs commit together or not at all. Writing an empty row set
// yields a zero-row partition, not an error.
func (r *Repository) ReplacePartition(ctx context.Context, date string, rows []schema.FactRow) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+storage.FactTable+` WHERE purchase_date = ?`, date); err != nil {
		return 0, fmt.Errorf("sqlite: delete partition %s: %w", date, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(storage.FactTable, storage.FactColumns))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, bindValues(storage.FactRowValues(row))...); err != nil {
			return 0, fmt.Errorf("sqlite: insert partition %s: %w", date, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit partition %s: %w", date, err)
	}
	return inserted, nil
}

// ReplaceAnomalies rewrites the audit sink with the current run's anomalies.
func (r *Repository) ReplaceAnomalies(ctx context.Context, anomalies []clean.Anomaly) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+storage.AnomalyTable); err != nil {
		return fmt.Errorf("sqlite: clear anomalies: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL(storage.AnomalyTable, storage.AnomalyColumns))
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range anomalies {
		if _, err := stmt.ExecContext(ctx, storage.AnomalyValues(a)...); err != nil {
			return fmt.Errorf("sqlite: insert anomaly: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit anomalies: %w", err)
	}
	return nil
}

// Query runs read-only SQL; *sql.Rows satisfies storage.Rows directly.
func (r *Repository) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	return rows, nil
}

// Rebind is the identity: the catalog already uses '?' placeholders.
func (r *Repository) Rebind(sql string) string { return sql }

func insertSQL(table string, columns []string) string {
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(ph, ", "))
}

// bindValues normalizes Go values onto SQLite storage classes: bools become
// 0/1 integers and timestamps the source layout text.
func bindValues(vals []any) []any {
	for i, v := range vals {
		switch t := v.(type) {
		case bool:
			if t {
				vals[i] = 1
			} else {
				vals[i] = 0
			}
		case time.Time:
			vals[i] = t.Format(schema.TimestampLayout)
		}
	}
	return vals
}
