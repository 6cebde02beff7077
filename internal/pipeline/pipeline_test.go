package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"retailfact/internal/config"
	"retailfact/internal/query"
	"retailfact/internal/schema"
	"retailfact/internal/storage"
	"retailfact/internal/storage/sqlite"
)

// writeFixtures lays down the seven-stream CSV exports used by the run tests:
//
//	o1: two items (50 + 30) split across two credit_card payments of 40,
//	o2: one item (20), one boleto payment,
//	o3: one item (10, unmapped category), no payments,
//	o4: unparsable purchase timestamp (anomaly),
//	o5: item priced -4 (anomaly), order never ships in orders.csv,
//	ghost: payment with no order-items (orphan).
func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"orders.csv": "order_id,customer_id,order_status,order_purchase_timestamp\n" +
			"o1,c1,delivered,2017-10-02 10:56:33\n" +
			"o1,c1,delivered,2017-10-02 10:56:33\n" + // duplicate
			"o2,c2,delivered,2017-10-03 09:00:00\n" +
			"o3,c3,delivered,2017-10-03 10:00:00\n" +
			"o4,c4,delivered,not-a-date\n",
		"order_items.csv": "order_id,order_item_id,product_id,seller_id,price,freight_value\n" +
			"o1,1,p1,s1,50.00,5.00\n" +
			"o1,2,p2,s2,30.00,3.00\n" +
			"o1,2,p2,s2,30.00,3.00\n" + // exact duplicate
			"o2,1,p1,s1,20.00,2.00\n" +
			"o3,1,p3,s1,10.00,1.00\n" +
			"o5,1,p1,s1,-4.00,0.00\n",
		"payments.csv": "order_id,payment_sequential,payment_type,payment_installments,payment_value\n" +
			"o1,1,credit_card,1,40.00\n" +
			"o1,2,credit_card,1,40.00\n" +
			"o2,1,boleto,1,22.00\n" +
			"ghost,1,voucher,1,99.00\n",
		"products.csv": "product_id,product_category_name\n" +
			"p1,Toys\n" +
			"p2,Books\n" +
			"p3,\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func testConfig(dir string) config.Pipeline {
	return config.Pipeline{
		Job: "retail-test",
		Source: config.Source{
			Kind: "file",
			Dir:  dir,
			Files: map[string]string{
				schema.EntityOrders:     "orders.csv",
				schema.EntityOrderItems: "order_items.csv",
				schema.EntityPayments:   "payments.csv",
				schema.EntityProducts:   "products.csv",
			},
		},
		Storage: config.Storage{Kind: "sqlite"},
	}
}

func testStore(t *testing.T) *sqlite.Repository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "fact.db")
	repo, err := sqlite.NewRepository(context.Background(), sqlite.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestRunEndToEnd(t *testing.T) {
	dir := writeFixtures(t)
	store := testStore(t)
	ctx := context.Background()

	sum, err := Run(ctx, testConfig(dir), store, storage.NewPartitionLocks())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// o1 fans out 2x2, o2 and o3 one row each.
	if sum.FactRows != 6 || sum.Orders != 3 {
		t.Fatalf("fact_rows=%d orders=%d, want 6/3", sum.FactRows, sum.Orders)
	}
	if sum.OrphanPayments != 1 {
		t.Fatalf("orphan payments = %d, want 1", sum.OrphanPayments)
	}
	if sum.MultiPaymentOrders != 1 {
		t.Fatalf("multi-payment orders = %d, want 1", sum.MultiPaymentOrders)
	}
	if sum.Deduped[schema.EntityOrderItems] != 1 || sum.Deduped[schema.EntityOrders] != 1 {
		t.Fatalf("deduped = %v", sum.Deduped)
	}
	if sum.Anomalies["invalid_price"] != 1 || sum.Anomalies["invalid_timestamp"] != 1 {
		t.Fatalf("anomalies = %v", sum.Anomalies)
	}
	if sum.Read[schema.EntityOrders] != 5 {
		t.Fatalf("orders read = %d, want 5", sum.Read[schema.EntityOrders])
	}
	if got := sum.FailedPartitions(); len(got) != 0 {
		t.Fatalf("failed partitions: %v", got)
	}
	if len(sum.Partitions) != 2 {
		t.Fatalf("partitions = %d, want 2", len(sum.Partitions))
	}

	eng := query.New(store)
	total, err := eng.TotalRevenue(ctx)
	if err != nil {
		t.Fatalf("total revenue: %v", err)
	}
	if total != 110 {
		t.Fatalf("total revenue = %v, want 110", total)
	}
	count, revenue, err := eng.UnknownCategoryStats(ctx)
	if err != nil {
		t.Fatalf("unknown category stats: %v", err)
	}
	if count != 1 || revenue != 10 {
		t.Fatalf("unknown bucket = (%d, %v), want (1, 10)", count, revenue)
	}
	anoms, err := eng.PriceAnomalies(ctx)
	if err != nil {
		t.Fatalf("price anomalies: %v", err)
	}
	if len(anoms) != 1 || anoms[0].OrderID != "o5" || anoms[0].Price != -4 {
		t.Fatalf("price anomalies = %+v", anoms)
	}
}

// Running the same input twice leaves each partition holding exactly the
// rows of the second run.
func TestRunIsRepeatable(t *testing.T) {
	dir := writeFixtures(t)
	store := testStore(t)
	ctx := context.Background()
	cfg := testConfig(dir)
	locks := storage.NewPartitionLocks()

	first, err := Run(ctx, cfg, store, locks)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Run(ctx, cfg, store, locks)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.FactRows != second.FactRows {
		t.Fatalf("fact rows drifted: %d vs %d", first.FactRows, second.FactRows)
	}

	total, err := query.New(store).TotalRevenue(ctx)
	if err != nil {
		t.Fatalf("total revenue: %v", err)
	}
	if total != 110 {
		t.Fatalf("total revenue after rerun = %v, want 110", total)
	}
}

func TestRunWindowReplacesEveryDate(t *testing.T) {
	dir := writeFixtures(t)
	store := testStore(t)
	ctx := context.Background()

	cfg := testConfig(dir)
	cfg.Window = config.RunWindow{From: "2017-10-02", To: "2017-10-04"}
	sum, err := Run(ctx, cfg, store, storage.NewPartitionLocks())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Three window dates, one of them with no surviving rows.
	if len(sum.Partitions) != 3 {
		t.Fatalf("partitions = %d, want 3", len(sum.Partitions))
	}
	byDate := make(map[string]int64)
	for _, p := range sum.Partitions {
		if p.Err != nil {
			t.Fatalf("partition %s failed: %v", p.Date, p.Err)
		}
		byDate[p.Date] = p.Rows
	}
	if byDate["2017-10-02"] != 4 || byDate["2017-10-03"] != 2 || byDate["2017-10-04"] != 0 {
		t.Fatalf("partition rows = %v", byDate)
	}
}

func TestRunWindowFiltersOrders(t *testing.T) {
	dir := writeFixtures(t)
	store := testStore(t)
	ctx := context.Background()

	cfg := testConfig(dir)
	cfg.Window = config.RunWindow{From: "2017-10-03", To: "2017-10-03"}
	sum, err := Run(ctx, cfg, store, storage.NewPartitionLocks())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Orders != 2 || sum.FactRows != 2 {
		t.Fatalf("orders=%d fact_rows=%d, want 2/2", sum.Orders, sum.FactRows)
	}
}

func TestRunMissingSourceFileFails(t *testing.T) {
	dir := writeFixtures(t)
	store := testStore(t)

	cfg := testConfig(dir)
	cfg.Source.Files[schema.EntityPayments] = "missing.csv"
	if _, err := Run(context.Background(), cfg, store, storage.NewPartitionLocks()); err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestRunHeldPartitionLockSurfacesConflict(t *testing.T) {
	dir := writeFixtures(t)
	store := testStore(t)
	locks := storage.NewPartitionLocks()
	if err := locks.Acquire("2017-10-02"); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	sum, err := Run(context.Background(), testConfig(dir), store, locks)
	if err == nil {
		t.Fatal("expected joined partition error")
	}
	failed := sum.FailedPartitions()
	if len(failed) != 1 || failed[0] != "2017-10-02" {
		t.Fatalf("failed partitions = %v", failed)
	}
}
