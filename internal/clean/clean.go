// Package clean implements the record-cleaning stage: per-entity transform
// chains (normalize, dedup, coerce) followed by typed decoding, with
// out-of-domain values routed to an anomaly sink instead of being dropped.
//
// Cleaning is idempotent: every transform passes already-clean values
// through unchanged, so clean(clean(x)) == clean(x).
package clean

import (
	"sync"

	"retailfact/internal/schema"
	"retailfact/internal/transformer"
	"retailfact/internal/transformer/builtin"
	"retailfact/pkg/records"
)

// Anomaly reasons. Anomalous rows are excluded from the relevant aggregates
// but retained in the audit sink.
const (
	ReasonInvalidPrice     = "invalid_price"
	ReasonInvalidTimestamp = "invalid_timestamp"
)

// Anomaly is one audited row that failed a value-domain check.
type Anomaly struct {
	Entity    string
	Reason    string
	OrderID   string
	ProductID string
	Line      int
	Price     float64
}

// Sink accumulates rejections, anomalies, and dedup counts across the
// concurrent per-entity cleaning goroutines. It is the explicit run-state
// accumulator the pipeline threads through each stage.
type Sink struct {
	mu        sync.Mutex
	rejects   []builtin.RejectedRow
	anomalies []Anomaly
	deduped   map[string]int
}

func NewSink() *Sink {
	return &Sink{deduped: make(map[string]int)}
}

func (s *Sink) Reject(r builtin.RejectedRow) {
	s.mu.Lock()
	s.rejects = append(s.rejects, r)
	s.mu.Unlock()
}

func (s *Sink) Anomaly(a Anomaly) {
	s.mu.Lock()
	s.anomalies = append(s.anomalies, a)
	s.mu.Unlock()
}

func (s *Sink) Deduped(entity string, n int) {
	s.mu.Lock()
	s.deduped[entity] += n
	s.mu.Unlock()
}

func (s *Sink) Rejects() []builtin.RejectedRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]builtin.RejectedRow(nil), s.rejects...)
}

func (s *Sink) Anomalies() []Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Anomaly(nil), s.anomalies...)
}

func (s *Sink) DedupedCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.deduped))
	for k, v := range s.deduped {
		out[k] = v
	}
	return out
}

// chain builds the standard cleaning chain for an entity. Orders dedup on
// their business key (the source ships full-row near-duplicates with
// differing delivery columns we do not carry); everything else collapses
// exact full-row duplicates. Validation runs first so the rejection report
// reflects the raw stream.
func chain(c schema.Contract, sink *Sink, dedupKeys []string, categoryField string) transformer.Chain {
	stageReject := func(r builtin.RejectedRow) { sink.Reject(r) }
	return transformer.Chain{
		builtin.Validate{Contract: c, Reject: stageReject},
		builtin.Normalize{CategoryField: categoryField},
		builtin.DeDup{Keys: dedupKeys, Dropped: func(n int) { sink.Deduped(c.Name, n) }},
		builtin.Coerce{Contract: c},
	}
}

// Customers cleans the customers stream.
func Customers(in []records.Record, sink *Sink) []schema.Customer {
	cc := schema.Contracts()[schema.EntityCustomers]
	out := make([]schema.Customer, 0, len(in))
	for _, r := range chain(cc, sink, nil, "").Apply(in) {
		out = append(out, schema.Customer{
			CustomerID: r.String("customer_id"),
			City:       r.String("customer_city"),
			State:      r.String("customer_state"),
		})
	}
	return out
}

// Orders cleans the orders stream. Orders whose purchase timestamp cannot be
// parsed are tagged invalid_timestamp and excluded: the fact table is
// partitioned by purchase date, so an undatable order has no partition.
func Orders(in []records.Record, sink *Sink) []schema.Order {
	cc := schema.Contracts()[schema.EntityOrders]
	out := make([]schema.Order, 0, len(in))
	for _, r := range chain(cc, sink, []string{"order_id"}, "").Apply(in) {
		ts, ok := r.Time("order_purchase_timestamp")
		if !ok {
			sink.Anomaly(Anomaly{
				Entity:  schema.EntityOrders,
				Reason:  ReasonInvalidTimestamp,
				OrderID: r.String("order_id"),
				Line:    r.Line(),
			})
			continue
		}
		out = append(out, schema.Order{
			OrderID:           r.String("order_id"),
			CustomerID:        r.String("customer_id"),
			Status:            r.String("order_status"),
			PurchaseTimestamp: ts,
		})
	}
	return out
}

// OrderItems cleans the order-items stream. Items with price <= 0 are tagged
// invalid_price and routed to the sink: excluded from revenue aggregates,
// retained for audit.
func OrderItems(in []records.Record, sink *Sink) []schema.OrderItem {
	cc := schema.Contracts()[schema.EntityOrderItems]
	out := make([]schema.OrderItem, 0, len(in))
	for _, r := range chain(cc, sink, nil, "").Apply(in) {
		price, _ := r.Float("price")
		if price <= 0 {
			sink.Anomaly(Anomaly{
				Entity:    schema.EntityOrderItems,
				Reason:    ReasonInvalidPrice,
				OrderID:   r.String("order_id"),
				ProductID: r.String("product_id"),
				Line:      r.Line(),
				Price:     price,
			})
			continue
		}
		freight, _ := r.Float("freight_value")
		out = append(out, schema.OrderItem{
			OrderID:      r.String("order_id"),
			OrderItemID:  r.Int("order_item_id"),
			ProductID:    r.String("product_id"),
			SellerID:     r.String("seller_id"),
			Price:        price,
			FreightValue: freight,
		})
	}
	return out
}

// Payments cleans the payments stream.
func Payments(in []records.Record, sink *Sink) []schema.Payment {
	cc := schema.Contracts()[schema.EntityPayments]
	out := make([]schema.Payment, 0, len(in))
	for _, r := range chain(cc, sink, nil, "").Apply(in) {
		value, _ := r.Float("payment_value")
		out = append(out, schema.Payment{
			OrderID:      r.String("order_id"),
			Sequential:   r.Int("payment_sequential"),
			Type:         r.String("payment_type"),
			Installments: r.Int("payment_installments"),
			Value:        value,
		})
	}
	return out
}

// Products cleans the products stream; blank or unmapped categories land in
// the unknown bucket courtesy of Normalize.
func Products(in []records.Record, sink *Sink) []schema.Product {
	cc := schema.Contracts()[schema.EntityProducts]
	out := make([]schema.Product, 0, len(in))
	for _, r := range chain(cc, sink, nil, "product_category_name").Apply(in) {
		out = append(out, schema.Product{
			ProductID: r.String("product_id"),
			Category:  r.String("product_category_name"),
		})
	}
	return out
}

// Sellers cleans the sellers stream.
func Sellers(in []records.Record, sink *Sink) []schema.Seller {
	cc := schema.Contracts()[schema.EntitySellers]
	out := make([]schema.Seller, 0, len(in))
	for _, r := range chain(cc, sink, nil, "").Apply(in) {
		out = append(out, schema.Seller{
			SellerID: r.String("seller_id"),
			City:     r.String("seller_city"),
			State:    r.String("seller_state"),
		})
	}
	return out
}

// Reviews cleans the reviews stream.
func Reviews(in []records.Record, sink *Sink) []schema.Review {
	cc := schema.Contracts()[schema.EntityReviews]
	out := make([]schema.Review, 0, len(in))
	for _, r := range chain(cc, sink, nil, "").Apply(in) {
		out = append(out, schema.Review{
			ReviewID: r.String("review_id"),
			OrderID:  r.String("order_id"),
			Score:    r.Int("review_score"),
		})
	}
	return out
}
