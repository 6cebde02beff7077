package storage

import (
	"errors"
	"testing"
	"time"

	"retailfact/internal/clean"
	"retailfact/internal/schema"
)

func TestPartitionLocksConflict(t *testing.T) {
	locks := NewPartitionLocks()
	if err := locks.Acquire("2017-10-02"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := locks.Acquire("2017-10-02"); !errors.Is(err, ErrWriteConflict) {
		t.Fatalf("second acquire = %v, want ErrWriteConflict", err)
	}
	// A different partition is independent.
	if err := locks.Acquire("2017-10-03"); err != nil {
		t.Fatalf("disjoint acquire: %v", err)
	}
	locks.Release("2017-10-02")
	if err := locks.Acquire("2017-10-02"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestFactRowValuesMatchesColumns(t *testing.T) {
	r := schema.FactRow{
		OrderID:           "o1",
		OrderItemID:       1,
		CustomerID:        "c1",
		ProductID:         "p1",
		Category:          "toys",
		SellerID:          "s1",
		Price:             10,
		FreightValue:      2,
		PaymentSequential: 1,
		PaymentType:       "boleto",
		PaymentValue:      12,
		PurchaseTimestamp: time.Date(2017, 10, 2, 0, 0, 0, 0, time.UTC),
		PurchaseDate:      "2017-10-02",
	}
	vals := FactRowValues(r)
	if len(vals) != len(FactColumns) {
		t.Fatalf("FactRowValues produced %d values for %d columns", len(vals), len(FactColumns))
	}
	if vals[0] != "o1" || vals[12] != "2017-10-02" {
		t.Fatalf("column order drifted: %v", vals)
	}
}

func TestAnomalyValuesMatchesColumns(t *testing.T) {
	vals := AnomalyValues(clean.Anomaly{Entity: "order_items", Reason: "invalid_price", OrderID: "o1", ProductID: "p1", Line: 4, Price: -5})
	if len(vals) != len(AnomalyColumns) {
		t.Fatalf("AnomalyValues produced %d values for %d columns", len(vals), len(AnomalyColumns))
	}
}
