// Package resolve reconciles the many-to-many relationships between orders,
// order-items, and payments before the fact table is built. Joining raw
// payments against order-items multiplies every item price by the payment
// count; this package decides, per order, which side of each aggregate must
// be collapsed so that monetary values are attributed exactly once.
package resolve

import (
	"sort"

	"retailfact/internal/schema"
)

// Result carries the per-order resolution records plus the order-granularity
// payment views the aggregation engine relies on.
type Result struct {
	// Resolutions holds one record per order that has at least one
	// order-item, keyed by order_id.
	Resolutions map[string]schema.Resolution

	// ItemsByOrder and PaymentsByOrder group the cleaned entities for the
	// fact builder. Both preserve input order within an order.
	ItemsByOrder    map[string][]schema.OrderItem
	PaymentsByOrder map[string][]schema.Payment

	// Collapsed is the (order_id, payment_type) pre-summed payment view.
	Collapsed []CollapsedPayment

	// OrphanPayments counts payment rows whose order has no order-items.
	// They never enter revenue aggregates; the rate is reported per run.
	OrphanPayments int
}

// CollapsedPayment is one row of the collapsed view: payments summed to one
// row per (order_id, payment_type) so that payment-side aggregates join at
// order granularity without fan-out.
type CollapsedPayment struct {
	OrderID     string
	PaymentType string
	Value       float64
}

// Resolve groups items and payments by order and emits a resolution record
// per order with at least one item. An order with zero payments resolves
// with PaymentCount 0 and stays in revenue aggregates; an order with
// payments but no items is an orphan and is excluded.
func Resolve(items []schema.OrderItem, payments []schema.Payment) Result {
	res := Result{
		Resolutions:     make(map[string]schema.Resolution),
		ItemsByOrder:    make(map[string][]schema.OrderItem),
		PaymentsByOrder: make(map[string][]schema.Payment),
	}

	for _, it := range items {
		res.ItemsByOrder[it.OrderID] = append(res.ItemsByOrder[it.OrderID], it)
	}
	for _, p := range payments {
		if _, ok := res.ItemsByOrder[p.OrderID]; !ok {
			res.OrphanPayments++
			continue
		}
		res.PaymentsByOrder[p.OrderID] = append(res.PaymentsByOrder[p.OrderID], p)
	}

	for orderID, its := range res.ItemsByOrder {
		n := len(res.PaymentsByOrder[orderID])
		res.Resolutions[orderID] = schema.Resolution{
			OrderID:      orderID,
			ItemCount:    len(its),
			PaymentCount: n,
			MultiPayment: n > 1,
		}
	}

	res.Collapsed = collapse(res.PaymentsByOrder)
	return res
}

// collapse pre-sums payments to one row per (order_id, payment_type),
// ordered by order_id then payment_type for deterministic output.
func collapse(byOrder map[string][]schema.Payment) []CollapsedPayment {
	type key struct{ order, ptype string }
	sums := make(map[key]float64)
	for _, ps := range byOrder {
		for _, p := range ps {
			sums[key{p.OrderID, p.Type}] += p.Value
		}
	}
	out := make([]CollapsedPayment, 0, len(sums))
	for k, v := range sums {
		out = append(out, CollapsedPayment{OrderID: k.order, PaymentType: k.ptype, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].PaymentType < out[j].PaymentType
	})
	return out
}
