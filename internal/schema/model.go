package schema

import "time"

// Typed entities decoded from cleaned record streams. They are read-only
// inputs to the fact builder; nothing downstream mutates them.

type Customer struct {
	CustomerID string `db:"customer_id"`
	City       string `db:"customer_city"`
	State      string `db:"customer_state"`
}

type Order struct {
	OrderID           string    `db:"order_id"`
	CustomerID        string    `db:"customer_id"`
	Status            string    `db:"order_status"`
	PurchaseTimestamp time.Time `db:"order_purchase_timestamp"`
}

// PurchaseDate is the calendar-date partition key for the order.
func (o Order) PurchaseDate() string {
	return o.PurchaseTimestamp.Format(DateLayout)
}

type OrderItem struct {
	OrderID      string  `db:"order_id"`
	OrderItemID  int     `db:"order_item_id"` // 1-based sequence within the order
	ProductID    string  `db:"product_id"`
	SellerID     string  `db:"seller_id"`
	Price        float64 `db:"price"`
	FreightValue float64 `db:"freight_value"`
}

type Payment struct {
	OrderID      string  `db:"order_id"`
	Sequential   int     `db:"payment_sequential"` // 1-based sequence within the order
	Type         string  `db:"payment_type"`
	Installments int     `db:"payment_installments"`
	Value        float64 `db:"payment_value"`
}

type Product struct {
	ProductID string `db:"product_id"`
	Category  string `db:"product_category_name"` // "unknown" when missing or unmapped
}

type Seller struct {
	SellerID string `db:"seller_id"`
	City     string `db:"seller_city"`
	State    string `db:"seller_state"`
}

type Review struct {
	ReviewID string `db:"review_id"`
	OrderID  string `db:"order_id"`
	Score    int    `db:"review_score"`
}

// Resolution is the per-order record emitted by the multiplicity resolver.
// MultiPayment marks orders whose payments would fan out a naive join.
type Resolution struct {
	OrderID      string
	ItemCount    int
	PaymentCount int
	MultiPayment bool
}

// FactRow is one denormalized row of retail_fact_orders: one row per
// (order-item, payment) pair. OrderItemID and PaymentSequential are the
// de-duplication grain keys aggregate queries collapse on; summing Price
// over raw FactRows is only valid when PaymentSequential is collapsed first.
type FactRow struct {
	OrderID           string
	OrderItemID       int
	CustomerID        string
	ProductID         string
	Category          string
	SellerID          string
	Price             float64
	FreightValue      float64
	PaymentSequential int    // 0 when the order has no payment records
	PaymentType       string // "" when the order has no payment records
	PaymentValue      float64
	PurchaseTimestamp time.Time
	PurchaseDate      string // DateLayout partition key
	UnknownCategory   bool
	MultiPayment      bool
}
