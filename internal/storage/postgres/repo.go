// Package postgres implements the fact store on Postgres using pgx v5.
// Partition replacement runs COPY into a temp staging table, then a
// DELETE + INSERT..SELECT inside the same transaction, so a partition is
// swapped all-or-nothing.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retailfact/internal/clean"
	"retailfact/internal/schema"
	"retailfact/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	// DSN is the pgxpool connection string, e.g. "postgresql://...".
	DSN string
	// Schema qualifies the fact and anomaly tables; defaults to "public".
	Schema string
}

func (c Config) schemaOrDefault() string {
	if c.Schema == "" {
		return "public"
	}
	return c.Schema
}

// Repository is the Postgres-backed storage.Store.
type Repository struct {
	pool   *pgxpool.Pool
	schema string
}

var _ storage.Store = (*Repository)(nil)

// NewRepository constructs a Repository backed by a pgx pool.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	return &Repository{pool: pool, schema: cfg.schemaOrDefault()}, nil
}

func (r *Repository) Close() { r.pool.Close() }

func (r *Repository) factFQN() string    { return r.schema + "." + storage.FactTable }
func (r *Repository) anomalyFQN() string { return r.schema + "." + storage.AnomalyTable }

// EnsureSchema creates the fact and anomaly tables when absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + r.factFQN() + ` (
			order_id TEXT NOT NULL,
			order_item_id INTEGER NOT NULL,
			customer_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			product_category_name TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			freight_value DOUBLE PRECISION NOT NULL,
			payment_sequential INTEGER NOT NULL,
			payment_type TEXT NOT NULL,
			payment_value DOUBLE PRECISION NOT NULL,
			order_purchase_timestamp TIMESTAMP NOT NULL,
			purchase_date DATE NOT NULL,
			unknown_category BOOLEAN NOT NULL,
			multi_payment BOOLEAN NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fact_purchase_date ON ` + r.factFQN() + ` (purchase_date)`,
		`CREATE TABLE IF NOT EXISTS ` + r.anomalyFQN() + ` (
			entity TEXT NOT NULL,
			reason TEXT NOT NULL,
			order_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			line INTEGER NOT NULL,
			price DOUBLE PRECISION NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

// ReplacePartition COPYs the rows into a temp staging table, then swaps the
// partition inside the same transaction.
func (r *Repository) ReplacePartition(ctx context.Context, date string, rows []schema.FactRow) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	staging := "staging_" + storage.FactTable
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WHERE false",
		staging, strings.Join(storage.FactColumns, ", "), r.factFQN(),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("postgres: create staging: %w", err)
	}

	src := make([][]any, len(rows))
	for i, row := range rows {
		src[i] = storage.FactRowValues(row)
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, storage.FactColumns, pgx.CopyFromRows(src))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy staging: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM "+r.factFQN()+" WHERE purchase_date = $1", date); err != nil {
		return 0, fmt.Errorf("postgres: delete partition %s: %w", date, err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		r.factFQN(), strings.Join(storage.FactColumns, ", "),
		strings.Join(storage.FactColumns, ", "), staging)
	if _, err := tx.Exec(ctx, insert); err != nil {
		return 0, fmt.Errorf("postgres: insert partition %s: %w", date, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit partition %s: %w", date, err)
	}
	return copied, nil
}

// ReplaceAnomalies rewrites the audit sink with the current run's anomalies.
func (r *Repository) ReplaceAnomalies(ctx context.Context, anomalies []clean.Anomaly) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE "+r.anomalyFQN()); err != nil {
		return fmt.Errorf("postgres: clear anomalies: %w", err)
	}
	src := make([][]any, len(anomalies))
	for i, a := range anomalies {
		src[i] = storage.AnomalyValues(a)
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{r.schema, storage.AnomalyTable}, storage.AnomalyColumns,
		pgx.CopyFromRows(src)); err != nil {
		return fmt.Errorf("postgres: copy anomalies: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit anomalies: %w", err)
	}
	return nil
}

// Query runs read-only SQL through the pool.
func (r *Repository) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	return pgxRows{rows}, nil
}

// Rebind converts the catalog's '?' placeholders into $1..$n.
func (r *Repository) Rebind(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}
