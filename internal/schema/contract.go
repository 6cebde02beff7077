package schema

// Field describes one column of an input stream contract.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "int" | "float" | "text" | "date"
	Required bool   `json:"required,omitempty"`
	Layout   string `json:"layout,omitempty"` // date layout override
}

// Contract is the expected shape of a named record stream. HeaderMap maps
// raw source headers onto canonical field names.
type Contract struct {
	Name      string            `json:"name"`
	Fields    []Field           `json:"fields"`
	HeaderMap map[string]string `json:"header_map,omitempty"`
}

// TimestampLayout is the layout used by the retail source exports.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the calendar-date granularity used for partitioning and
// trend aggregation.
const DateLayout = "2006-01-02"

// Entity stream names. These double as config keys and metrics labels.
const (
	EntityCustomers  = "customers"
	EntityOrders     = "orders"
	EntityOrderItems = "order_items"
	EntityPayments   = "payments"
	EntityProducts   = "products"
	EntitySellers    = "sellers"
	EntityReviews    = "reviews"
)

// Contracts returns the canonical contracts for the seven input streams,
// keyed by entity name.
func Contracts() map[string]Contract {
	return map[string]Contract{
		EntityCustomers: {
			Name: EntityCustomers,
			Fields: []Field{
				{Name: "customer_id", Type: "text", Required: true},
				{Name: "customer_city", Type: "text"},
				{Name: "customer_state", Type: "text"},
			},
		},
		EntityOrders: {
			Name: EntityOrders,
			Fields: []Field{
				{Name: "order_id", Type: "text", Required: true},
				{Name: "customer_id", Type: "text", Required: true},
				{Name: "order_status", Type: "text"},
				{Name: "order_purchase_timestamp", Type: "date", Required: true, Layout: TimestampLayout},
			},
		},
		EntityOrderItems: {
			Name: EntityOrderItems,
			Fields: []Field{
				{Name: "order_id", Type: "text", Required: true},
				{Name: "order_item_id", Type: "int", Required: true},
				{Name: "product_id", Type: "text", Required: true},
				{Name: "seller_id", Type: "text", Required: true},
				{Name: "price", Type: "float", Required: true},
				{Name: "freight_value", Type: "float"},
			},
		},
		EntityPayments: {
			Name: EntityPayments,
			Fields: []Field{
				{Name: "order_id", Type: "text", Required: true},
				{Name: "payment_sequential", Type: "int", Required: true},
				{Name: "payment_type", Type: "text", Required: true},
				{Name: "payment_installments", Type: "int"},
				{Name: "payment_value", Type: "float", Required: true},
			},
		},
		EntityProducts: {
			Name: EntityProducts,
			Fields: []Field{
				{Name: "product_id", Type: "text", Required: true},
				{Name: "product_category_name", Type: "text"},
			},
		},
		EntitySellers: {
			Name: EntitySellers,
			Fields: []Field{
				{Name: "seller_id", Type: "text", Required: true},
				{Name: "seller_city", Type: "text"},
				{Name: "seller_state", Type: "text"},
			},
		},
		EntityReviews: {
			Name: EntityReviews,
			Fields: []Field{
				{Name: "review_id", Type: "text", Required: true},
				{Name: "order_id", Type: "text", Required: true},
				{Name: "review_score", Type: "int", Required: true},
			},
		},
	}
}
