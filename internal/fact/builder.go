// Package fact builds the denormalized retail_fact_orders rows from cleaned
// entities and resolution records.
package fact

import (
	"retailfact/internal/resolve"
	"retailfact/internal/schema"
	"retailfact/internal/transformer/builtin"
)

// Stats summarizes a build for the run summary.
type Stats struct {
	Rows              int // total FactRows emitted: Σ(items × max(payments,1))
	Orders            int // orders that produced at least one row
	ItemsWithoutOrder int // order-items dropped because their order never passed cleaning
}

// Build emits one FactRow per (order-item, payment) pair. The m×n inflation
// is intentional for row-level audit views; aggregate queries collapse on
// the grain keys carried by each row. An order with no payment records emits
// one row per item with empty payment fields, and stays in revenue
// aggregates with total payment 0.
//
// The resolver must have run over the same items and payments: each row's
// MultiPayment flag comes from the order's resolution record.
func Build(orders []schema.Order, products []schema.Product, res resolve.Result) ([]schema.FactRow, Stats) {
	var stats Stats

	categories := make(map[string]string, len(products))
	for _, p := range products {
		categories[p.ProductID] = p.Category
	}

	orderByID := make(map[string]schema.Order, len(orders))
	for _, o := range orders {
		orderByID[o.OrderID] = o
	}
	for orderID, its := range res.ItemsByOrder {
		if _, ok := orderByID[orderID]; !ok {
			stats.ItemsWithoutOrder += len(its)
		}
	}

	var rows []schema.FactRow
	for _, o := range orders {
		its := res.ItemsByOrder[o.OrderID]
		if len(its) == 0 {
			continue
		}
		r := res.Resolutions[o.OrderID]
		pays := res.PaymentsByOrder[o.OrderID]
		stats.Orders++

		for _, it := range its {
			category, ok := categories[it.ProductID]
			if !ok || category == "" {
				category = builtin.UnknownCategory
			}
			base := schema.FactRow{
				OrderID:           o.OrderID,
				OrderItemID:       it.OrderItemID,
				CustomerID:        o.CustomerID,
				ProductID:         it.ProductID,
				Category:          category,
				SellerID:          it.SellerID,
				Price:             it.Price,
				FreightValue:      it.FreightValue,
				PurchaseTimestamp: o.PurchaseTimestamp,
				PurchaseDate:      o.PurchaseDate(),
				UnknownCategory:   category == builtin.UnknownCategory,
				MultiPayment:      r.MultiPayment,
			}
			if len(pays) == 0 {
				rows = append(rows, base)
				continue
			}
			for _, p := range pays {
				row := base
				row.PaymentSequential = p.Sequential
				row.PaymentType = p.Type
				row.PaymentValue = p.Value
				rows = append(rows, row)
			}
		}
	}
	stats.Rows = len(rows)
	return rows, stats
}
