package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"retailfact/internal/config"
	"retailfact/internal/schema"
	"retailfact/internal/storage/sqlite"
)

func TestResolveMetricsBackend(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{name: "flag wins", flag: "none", env: "pushgateway", want: "none"},
		{name: "env fallback", flag: "", env: "pushgateway", want: "pushgateway"},
		{name: "both empty", flag: "", env: "", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("METRICS_BACKEND", tc.env)
			if got := resolveMetricsBackend(tc.flag); got != tc.want {
				t.Fatalf("resolveMetricsBackend(%q) = %q; want %q", tc.flag, got, tc.want)
			}
		})
	}
}

func TestNewStoreUnknownKind(t *testing.T) {
	if _, err := newStore(context.Background(), config.Storage{Kind: "oracle"}); err == nil {
		t.Fatal("expected error for unknown storage kind")
	}
}

// TestPrintReportCoversCatalog seeds a small fact table and checks that the
// report prints every section, including average order value and the
// per-seller product ranking.
func TestPrintReportCoversCatalog(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "fact.db")
	repo, err := sqlite.NewRepository(ctx, sqlite.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(repo.Close)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	ts, _ := time.Parse(schema.DateLayout, "2017-10-02")
	rows := []schema.FactRow{
		{
			OrderID: "o1", OrderItemID: 1, CustomerID: "c1",
			ProductID: "p1", Category: "toys", SellerID: "s1",
			Price: 50, PaymentSequential: 1, PaymentType: "credit_card",
			PaymentValue: 50, PurchaseTimestamp: ts, PurchaseDate: "2017-10-02",
		},
		{
			OrderID: "o2", OrderItemID: 1, CustomerID: "c2",
			ProductID: "p2", Category: "books", SellerID: "s2",
			Price: 30, PaymentSequential: 1, PaymentType: "boleto",
			PaymentValue: 30, PurchaseTimestamp: ts, PurchaseDate: "2017-10-02",
		},
	}
	if _, err := repo.ReplacePartition(ctx, "2017-10-02", rows); err != nil {
		t.Fatalf("replace partition: %v", err)
	}

	out := captureStdout(t, func() {
		if err := printReport(ctx, repo, config.QueryDefaults{TopN: 5, SellerRevenueThreshold: 10}); err != nil {
			t.Errorf("printReport: %v", err)
		}
	})

	for _, want := range []string{
		"Total Revenue",
		"Average Order Value",
		"40.00", // (50+30)/2 orders
		"Revenue by Category",
		"Top 5 Products by Revenue",
		"Top 5 Sellers by Revenue",
		"Top Product per Seller",
		"Payment Type Distribution",
		"Top 5 Customers by Order Count",
		"Daily Revenue Trend",
		"Data Quality",
		"multi-payment orders: 0",
		"price<=0 anomalies: 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\nreport:\n%s", want, out)
		}
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	done := make(chan string)
	go func() {
		b, _ := io.ReadAll(r)
		done <- string(b)
	}()
	fn()
	w.Close()
	return <-done
}
