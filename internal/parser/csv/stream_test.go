package csv

import (
	"context"
	"strings"
	"testing"

	"retailfact/internal/config"
	"retailfact/internal/schema"
)

func ordersContract() schema.Contract {
	return schema.Contracts()[schema.EntityOrders]
}

func TestStreamRecordsBasic(t *testing.T) {
	src := strings.Join([]string{
		"order_id,customer_id,order_status,order_purchase_timestamp",
		"o1,c1,delivered,2017-10-02 10:56:33",
		"o2,c2,shipped,2017-10-03 11:00:00",
	}, "\n")

	recs, err := StreamRecords(context.Background(), strings.NewReader(src), ordersContract(), nil, nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if got := recs[0].String("order_id"); got != "o1" {
		t.Fatalf("order_id = %q", got)
	}
	if got := recs[0].Line(); got != 2 {
		t.Fatalf("line = %d, want 2 (after header)", got)
	}
	if got := recs[1].Line(); got != 3 {
		t.Fatalf("line = %d, want 3", got)
	}
}

func TestStreamRecordsHeaderMap(t *testing.T) {
	contract := ordersContract()
	contract.HeaderMap = map[string]string{"id": "order_id", "cust": "customer_id"}
	src := "id,cust,order_purchase_timestamp\no1,c1,2017-10-02 10:56:33\n"

	recs, err := StreamRecords(context.Background(), strings.NewReader(src), contract, nil, nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got := recs[0].String("order_id"); got != "o1" {
		t.Fatalf("header map not applied: %v", recs[0])
	}
}

func TestStreamRecordsSoftRowErrors(t *testing.T) {
	// Line 3 has a bare quote mid-field; the stream must report and continue.
	src := "order_id,customer_id,order_purchase_timestamp\n" +
		"o1,c1,2017-10-02 10:56:33\n" +
		"o2,br\"oken,2017-10-03 11:00:00\n" +
		"o3,c3,2017-10-04 12:00:00\n"

	var badLines []int
	recs, err := StreamRecords(context.Background(), strings.NewReader(src), ordersContract(), nil,
		func(line int, err error) { badLines = append(badLines, line) })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 surviving records, got %d", len(recs))
	}
	if len(badLines) == 0 {
		t.Fatal("row error not reported")
	}
}

func TestStreamRecordsDropsExtraAndFillsMissing(t *testing.T) {
	src := "order_id,customer_id,order_purchase_timestamp,unmodeled_column\n" +
		"o1,c1,2017-10-02 10:56:33,junk\n"

	recs, err := StreamRecords(context.Background(), strings.NewReader(src), ordersContract(), nil, nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if _, ok := recs[0]["unmodeled_column"]; ok {
		t.Fatal("extra column carried through")
	}
	if v, ok := recs[0]["order_status"]; !ok || v != nil {
		t.Fatalf("missing column should be nil field, got %#v (present=%v)", v, ok)
	}
}

func TestStreamRecordsCustomDelimiterNoHeader(t *testing.T) {
	opts := config.Options{"comma": ";", "has_header": false}
	src := "o1;c1;delivered;2017-10-02 10:56:33\n"

	recs, err := StreamRecords(context.Background(), strings.NewReader(src), ordersContract(), opts, nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(recs) != 1 || recs[0].String("order_id") != "o1" || recs[0].String("order_status") != "delivered" {
		t.Fatalf("headerless parse failed: %+v", recs)
	}
}

func TestStreamRecordsHeaderError(t *testing.T) {
	if _, err := StreamRecords(context.Background(), strings.NewReader(""), ordersContract(), nil, nil); err == nil {
		t.Fatal("expected header read error on empty input")
	}
}

func TestStreamRecordsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := "order_id,customer_id,order_purchase_timestamp\no1,c1,2017-10-02 10:56:33\n"
	_, err := StreamRecords(ctx, strings.NewReader(src), ordersContract(), nil, nil)
	if err == nil {
		t.Fatal("expected context error")
	}
}
