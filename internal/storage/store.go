// Package storage contains the storage-agnostic contracts for the
// partitioned fact store: the Store interface both backends implement, the
// shared column layout of retail_fact_orders, and the per-partition write
// lock that serializes overlapping runs.
package storage

import (
	"context"
	"errors"
	"sync"

	"retailfact/internal/clean"
	"retailfact/internal/schema"
)

// ErrWriteConflict is returned when a writer targets a date partition
// another writer currently holds. The run fails for that partition only and
// is safe to retry.
var ErrWriteConflict = errors.New("storage: partition write conflict")

// FactTable is the date-partitioned analytics table.
const FactTable = "retail_fact_orders"

// AnomalyTable is the audit sink for rows excluded from aggregates.
const AnomalyTable = "retail_anomalies"

// FactColumns is the column order shared by both backends for partition
// loads. It must match the backend DDL.
var FactColumns = []string{
	"order_id",
	"order_item_id",
	"customer_id",
	"product_id",
	"product_category_name",
	"seller_id",
	"price",
	"freight_value",
	"payment_sequential",
	"payment_type",
	"payment_value",
	"order_purchase_timestamp",
	"purchase_date",
	"unknown_category",
	"multi_payment",
}

// AnomalyColumns is the column order for the anomaly sink.
var AnomalyColumns = []string{"entity", "reason", "order_id", "product_id", "line", "price"}

// Rows is the minimal result-set surface the aggregation engine consumes.
// database/sql rows satisfy it directly; pgx rows are wrapped by an adapter.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Querier executes read-only SQL against the fact store. Rebind translates
// the catalog's '?' placeholders into the backend's native style.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Rebind(sql string) string
}

// Store is the partitioned fact store. ReplacePartition is all-or-nothing:
// a failed write must leave the previous partition contents intact, and a
// re-run leaves the partition holding exactly the new rows.
type Store interface {
	Querier

	EnsureSchema(ctx context.Context) error
	ReplacePartition(ctx context.Context, date string, rows []schema.FactRow) (int64, error)
	ReplaceAnomalies(ctx context.Context, anomalies []clean.Anomaly) error
	Close()
}

// PartitionLocks serializes writers per date partition. Writers targeting
// disjoint partitions proceed without coordination.
type PartitionLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewPartitionLocks() *PartitionLocks {
	return &PartitionLocks{held: make(map[string]struct{})}
}

// Acquire takes the lock for date or fails immediately with
// ErrWriteConflict; partition writes never queue behind one another.
func (l *PartitionLocks) Acquire(date string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[date]; busy {
		return ErrWriteConflict
	}
	l.held[date] = struct{}{}
	return nil
}

func (l *PartitionLocks) Release(date string) {
	l.mu.Lock()
	delete(l.held, date)
	l.mu.Unlock()
}

// FactRowValues flattens a FactRow into the FactColumns order.
func FactRowValues(r schema.FactRow) []any {
	return []any{
		r.OrderID,
		r.OrderItemID,
		r.CustomerID,
		r.ProductID,
		r.Category,
		r.SellerID,
		r.Price,
		r.FreightValue,
		r.PaymentSequential,
		r.PaymentType,
		r.PaymentValue,
		r.PurchaseTimestamp,
		r.PurchaseDate,
		r.UnknownCategory,
		r.MultiPayment,
	}
}

// AnomalyValues flattens an anomaly into the AnomalyColumns order.
func AnomalyValues(a clean.Anomaly) []any {
	return []any{a.Entity, a.Reason, a.OrderID, a.ProductID, a.Line, a.Price}
}
