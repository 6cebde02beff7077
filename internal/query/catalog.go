// Package query implements the fixed catalog of analytic queries over the
// fact store. Every aggregate picks its grouping granularity first and
// collapses the fanned-out side before summing:
//
//   - item view: DISTINCT (order_id, order_item_id) rows — price appears
//     exactly once per order-item regardless of payment count;
//   - payment view: DISTINCT (order_id, payment_sequential) rows — payment
//     values appear exactly once per payment record regardless of item count;
//   - collapsed view: the payment view pre-summed per (order_id, payment_type).
//
// Summing price or payment_value over raw fact rows is never correct when
// the other side has cardinality > 1; no query here does it.
package query

import (
	"context"
	"errors"
	"fmt"

	"retailfact/internal/storage"
)

// ErrEmptyFactTable is returned when the fact table holds zero rows. A query
// whose grouping merely matches nothing returns an empty slice instead.
var ErrEmptyFactTable = errors.New("query: fact table is empty")

// Engine executes the catalog against a fact store.
type Engine struct {
	q storage.Querier
}

func New(q storage.Querier) *Engine { return &Engine{q: q} }

const (
	itemView = `SELECT DISTINCT order_id, order_item_id, customer_id, product_id,
		product_category_name, seller_id, price, freight_value, purchase_date,
		unknown_category
		FROM ` + storage.FactTable

	paymentView = `SELECT DISTINCT order_id, payment_sequential, payment_type, payment_value
		FROM ` + storage.FactTable + ` WHERE payment_sequential > 0`

	collapsedView = `SELECT order_id, payment_type, SUM(payment_value) AS payment_value
		FROM (` + paymentView + `) p GROUP BY order_id, payment_type`
)

// Result row types, one per catalog query.

type CategoryRevenue struct {
	Category string
	Revenue  float64
}

type ProductRevenue struct {
	ProductID string
	Revenue   float64
}

type SellerRevenue struct {
	SellerID string
	Revenue  float64
}

type PaymentTypeStats struct {
	PaymentType string
	Orders      int64
	Revenue     float64
	AvgValue    float64
}

type CustomerOrders struct {
	CustomerID string
	Orders     int64
}

type DailyRevenue struct {
	Date    string
	Revenue float64
}

type SellerProductRank struct {
	SellerID  string
	ProductID string
	Price     float64
	Rank      int64
}

type MultiPaymentOrder struct {
	OrderID  string
	Payments int64
}

type PriceAnomaly struct {
	Entity    string
	OrderID   string
	ProductID string
	Line      int64
	Price     float64
}

// TotalRevenue sums order-item prices over the de-duplicated item view.
func (e *Engine) TotalRevenue(ctx context.Context) (float64, error) {
	if err := e.ensureRows(ctx); err != nil {
		return 0, err
	}
	var total float64
	err := e.scalar(ctx, `SELECT COALESCE(SUM(price), 0) FROM (`+itemView+`) i`, &total)
	return total, err
}

// RevenueByCategory groups item revenue by product category, highest first.
func (e *Engine) RevenueByCategory(ctx context.Context) ([]CategoryRevenue, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT product_category_name, SUM(price) AS revenue
		 FROM (`+itemView+`) i
		 GROUP BY product_category_name
		 ORDER BY revenue DESC, product_category_name`))
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (CategoryRevenue, error) {
		var r CategoryRevenue
		err := s.Scan(&r.Category, &r.Revenue)
		return r, err
	})
}

// TopProducts returns the n highest-revenue products.
func (e *Engine) TopProducts(ctx context.Context, n int) ([]ProductRevenue, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT product_id, SUM(price) AS revenue
		 FROM (`+itemView+`) i
		 GROUP BY product_id
		 ORDER BY revenue DESC, product_id
		 LIMIT ?`), n)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (ProductRevenue, error) {
		var r ProductRevenue
		err := s.Scan(&r.ProductID, &r.Revenue)
		return r, err
	})
}

// TopSellers returns the n highest-revenue sellers.
func (e *Engine) TopSellers(ctx context.Context, n int) ([]SellerRevenue, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT seller_id, SUM(price) AS revenue
		 FROM (`+itemView+`) i
		 GROUP BY seller_id
		 ORDER BY revenue DESC, seller_id
		 LIMIT ?`), n)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (SellerRevenue, error) {
		var r SellerRevenue
		err := s.Scan(&r.SellerID, &r.Revenue)
		return r, err
	})
}

// PaymentTypeBreakdown reports order count, revenue, and average payment
// value per payment type over the collapsed view, so split payments count
// their order once per type and never multiply by item count.
func (e *Engine) PaymentTypeBreakdown(ctx context.Context) ([]PaymentTypeStats, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT payment_type, COUNT(DISTINCT order_id) AS orders,
		        SUM(payment_value) AS revenue, AVG(payment_value) AS avg_value
		 FROM (`+collapsedView+`) c
		 GROUP BY payment_type
		 ORDER BY revenue DESC, payment_type`))
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (PaymentTypeStats, error) {
		var r PaymentTypeStats
		err := s.Scan(&r.PaymentType, &r.Orders, &r.Revenue, &r.AvgValue)
		return r, err
	})
}

// OrdersPerCustomer returns the n customers with the most orders.
func (e *Engine) OrdersPerCustomer(ctx context.Context, n int) ([]CustomerOrders, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT customer_id, COUNT(DISTINCT order_id) AS orders
		 FROM (`+itemView+`) i
		 GROUP BY customer_id
		 ORDER BY orders DESC, customer_id
		 LIMIT ?`), n)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (CustomerOrders, error) {
		var r CustomerOrders
		err := s.Scan(&r.CustomerID, &r.Orders)
		return r, err
	})
}

// AverageOrderValue is total item revenue divided by distinct order count.
func (e *Engine) AverageOrderValue(ctx context.Context) (float64, error) {
	if err := e.ensureRows(ctx); err != nil {
		return 0, err
	}
	var avg float64
	err := e.scalar(ctx,
		`SELECT COALESCE(SUM(price) / COUNT(DISTINCT order_id), 0) FROM (`+itemView+`) i`, &avg)
	return avg, err
}

// DailyRevenueTrend returns item revenue per purchase date, ascending.
func (e *Engine) DailyRevenueTrend(ctx context.Context) ([]DailyRevenue, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT purchase_date, SUM(price) AS revenue
		 FROM (`+itemView+`) i
		 GROUP BY purchase_date
		 ORDER BY purchase_date`))
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (DailyRevenue, error) {
		var r DailyRevenue
		err := s.Scan(&r.Date, &r.Revenue)
		return r, err
	})
}

// TopProductsPerSeller dense-ranks each seller's items by price and returns
// ranks 1..n per seller.
func (e *Engine) TopProductsPerSeller(ctx context.Context, n int) ([]SellerProductRank, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT seller_id, product_id, price, rnk FROM (
			SELECT seller_id, product_id, price,
			       DENSE_RANK() OVER (PARTITION BY seller_id ORDER BY price DESC) AS rnk
			FROM (`+itemView+`) i
		 ) ranked
		 WHERE rnk <= ?
		 ORDER BY seller_id, rnk, product_id`), n)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (SellerProductRank, error) {
		var r SellerProductRank
		err := s.Scan(&r.SellerID, &r.ProductID, &r.Price, &r.Rank)
		return r, err
	})
}

// UnknownCategoryStats reports how many item rows fell into the unknown
// bucket and the revenue they carry.
func (e *Engine) UnknownCategoryStats(ctx context.Context) (count int64, revenue float64, err error) {
	if err := e.ensureRows(ctx); err != nil {
		return 0, 0, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT COUNT(*), COALESCE(SUM(price), 0)
		 FROM (`+itemView+`) i
		 WHERE unknown_category`))
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count, &revenue); err != nil {
			return 0, 0, err
		}
	}
	return count, revenue, rows.Err()
}

// SellersOverThreshold lists sellers whose item revenue exceeds min.
func (e *Engine) SellersOverThreshold(ctx context.Context, min float64) ([]SellerRevenue, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT seller_id, SUM(price) AS revenue
		 FROM (`+itemView+`) i
		 GROUP BY seller_id
		 HAVING SUM(price) > ?
		 ORDER BY revenue DESC, seller_id`), min)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (SellerRevenue, error) {
		var r SellerRevenue
		err := s.Scan(&r.SellerID, &r.Revenue)
		return r, err
	})
}

// MultiPaymentOrders lists orders paid with more than one payment record,
// with their payment counts.
func (e *Engine) MultiPaymentOrders(ctx context.Context) ([]MultiPaymentOrder, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT order_id, COUNT(*) AS payments
		 FROM (`+paymentView+`) p
		 GROUP BY order_id
		 HAVING COUNT(*) > 1
		 ORDER BY payments DESC, order_id`))
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (MultiPaymentOrder, error) {
		var r MultiPaymentOrder
		err := s.Scan(&r.OrderID, &r.Payments)
		return r, err
	})
}

// PriceAnomalies returns the audited rows excluded for price <= 0.
func (e *Engine) PriceAnomalies(ctx context.Context) ([]PriceAnomaly, error) {
	if err := e.ensureRows(ctx); err != nil {
		return nil, err
	}
	rows, err := e.q.Query(ctx, e.q.Rebind(
		`SELECT entity, order_id, product_id, line, price
		 FROM `+storage.AnomalyTable+`
		 WHERE reason = ? AND price <= 0
		 ORDER BY order_id, line`), "invalid_price")
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (PriceAnomaly, error) {
		var r PriceAnomaly
		err := s.Scan(&r.Entity, &r.OrderID, &r.ProductID, &r.Line, &r.Price)
		return r, err
	})
}

// ensureRows is the shared empty-table guard. Queries whose grouping matches
// zero rows of a non-empty table return empty slices, not errors.
func (e *Engine) ensureRows(ctx context.Context) error {
	var n int64
	if err := e.scalar(ctx, `SELECT COUNT(*) FROM `+storage.FactTable, &n); err != nil {
		return err
	}
	if n == 0 {
		return ErrEmptyFactTable
	}
	return nil
}

func (e *Engine) scalar(ctx context.Context, sql string, dst any) error {
	rows, err := e.q.Query(ctx, e.q.Rebind(sql))
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("query: scalar returned no row")
	}
	if err := rows.Scan(dst); err != nil {
		return err
	}
	return rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

// collect drains a result set into a typed, ordered slice. An empty result
// is a non-nil empty slice so callers can distinguish it from an error path.
func collect[T any](rows storage.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0, 16)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
