package builtin

import (
	"reflect"
	"testing"
	"time"

	"retailfact/internal/schema"
	"retailfact/pkg/records"
)

func TestCoerceTypesFields(t *testing.T) {
	c := Coerce{Contract: schema.Contracts()[schema.EntityOrders]}
	in := []records.Record{{
		"order_id":                 "o1",
		"customer_id":              "c1",
		"order_status":             "delivered",
		"order_purchase_timestamp": "2017-10-02 10:56:33",
	}}
	out := c.Apply(in)

	ts, ok := out[0].Time("order_purchase_timestamp")
	if !ok {
		t.Fatal("timestamp not coerced to time.Time")
	}
	want := time.Date(2017, 10, 2, 10, 56, 33, 0, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", ts, want)
	}
}

func TestCoerceNumericAndUnparsable(t *testing.T) {
	c := Coerce{Contract: schema.Contracts()[schema.EntityOrderItems]}
	in := []records.Record{{
		"order_id":      "o1",
		"order_item_id": "3",
		"product_id":    "p1",
		"seller_id":     "s1",
		"price":         "49.90",
		"freight_value": "oops", // optional, unparsable: nulled
	}}
	out := c.Apply(in)

	if got := out[0]["order_item_id"]; got != int64(3) {
		t.Errorf("order_item_id = %#v, want int64(3)", got)
	}
	if got := out[0]["price"]; got != 49.90 {
		t.Errorf("price = %#v, want 49.9", got)
	}
	if got := out[0]["freight_value"]; got != nil {
		t.Errorf("freight_value = %#v, want nil", got)
	}
}

func TestCoerceUnparsableDateNulled(t *testing.T) {
	c := Coerce{Contract: schema.Contracts()[schema.EntityOrders]}
	in := []records.Record{{
		"order_id":                 "o1",
		"customer_id":              "c1",
		"order_purchase_timestamp": "not a timestamp",
	}}
	out := c.Apply(in)
	if got := out[0]["order_purchase_timestamp"]; got != nil {
		t.Fatalf("unparsable date = %#v, want nil", got)
	}
}

func TestCoercePlainDateLayoutFallback(t *testing.T) {
	c := Coerce{Contract: schema.Contracts()[schema.EntityOrders]}
	in := []records.Record{{
		"order_id":                 "o1",
		"customer_id":              "c1",
		"order_purchase_timestamp": "2017-10-02",
	}}
	out := c.Apply(in)
	ts, ok := out[0].Time("order_purchase_timestamp")
	if !ok || ts.Format(schema.DateLayout) != "2017-10-02" {
		t.Fatalf("date fallback failed: %#v", out[0]["order_purchase_timestamp"])
	}
}

func TestCoerceIdempotent(t *testing.T) {
	c := Coerce{Contract: schema.Contracts()[schema.EntityOrderItems]}
	in := []records.Record{{
		"order_id":      "o1",
		"order_item_id": "1",
		"product_id":    "p1",
		"seller_id":     "s1",
		"price":         "10.5",
		"freight_value": "2.0",
	}}
	once := c.Apply(in)
	want := once[0].Clone()
	twice := c.Apply(once)
	if !reflect.DeepEqual(twice[0], want) {
		t.Fatalf("second pass changed record: %v != %v", twice[0], want)
	}
}
