package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"retailfact/internal/config"
	"retailfact/internal/metrics"
	"retailfact/internal/metrics/prompush"
	"retailfact/internal/pipeline"
	"retailfact/internal/query"
	"retailfact/internal/storage"
	"retailfact/internal/storage/postgres"
	"retailfact/internal/storage/sqlite"
)

// main is the entry point for the retailfact binary. It loads the pipeline
// config, optionally initializes a metrics backend, executes the batch run,
// and prints the analytics report.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/retail.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, none); falls back to env METRICS_BACKEND")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid: %v", cfgPath)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		return
	}

	initMetrics(metricsBackendFlg, pushGatewayURLFlg, p.Job, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	store, err := newStore(ctx, p.Storage)
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer store.Close()

	sum, runErr := pipeline.Run(ctx, p, store, storage.NewPartitionLocks())
	if sum == nil {
		fatalf("run: %v", runErr)
	}
	if runErr != nil {
		// Per-partition failures: report and keep going, the remaining
		// partitions and the report are still valid.
		log.Printf("run finished with partition failures: %v", runErr)
		for _, d := range sum.FailedPartitions() {
			log.Printf("  retry candidate: partition %s", d)
		}
	}
	printSummary(sum)

	if err := printReport(ctx, store, p.Query); err != nil {
		if errors.Is(err, query.ErrEmptyFactTable) {
			log.Printf("fact table is empty; skipping report")
		} else {
			fatalf("report: %v", err)
		}
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// resolveMetricsBackend picks the backend name: the -metrics-backend flag
// when set, otherwise the METRICS_BACKEND environment variable.
func resolveMetricsBackend(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv("METRICS_BACKEND")
}

func initMetrics(backendName, gwURL, job string, verbose bool) {
	backendName = resolveMetricsBackend(backendName)
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		if job == "" {
			job = "retailfact"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v backend=%v job=%v", gwURL, backendName, job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func newStore(ctx context.Context, cfg config.Storage) (storage.Store, error) {
	switch cfg.Kind {
	case "sqlite":
		return sqlite.NewRepository(ctx, sqlite.Config{DSN: cfg.DSN})
	case "postgres":
		return postgres.NewRepository(ctx, postgres.Config{DSN: cfg.DSN, Schema: cfg.Schema})
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

func printSummary(s *pipeline.Summary) {
	fmt.Printf("===== Run Summary (%s) =====\n", s.Job)
	for entity, n := range s.Read {
		fmt.Printf("read %-12s %8d rows (%d parse errors)\n", entity, n, s.ParseErrors[entity])
	}
	fmt.Printf("rejected=%d deduped=%v anomalies=%v\n", s.Rejected, s.Deduped, s.Anomalies)
	fmt.Printf("orders=%d fact_rows=%d multi_payment_orders=%d orphan_payments=%d items_without_order=%d\n",
		s.Orders, s.FactRows, s.MultiPaymentOrders, s.OrphanPayments, s.ItemsWithoutOrder)
	for _, p := range s.Partitions {
		status := "ok"
		if p.Err != nil {
			status = p.Err.Error()
		}
		fmt.Printf("partition %s rows=%d %s\n", p.Date, p.Rows, status)
	}
}

func printReport(ctx context.Context, store storage.Store, q config.QueryDefaults) error {
	eng := query.New(store)
	topN := q.TopN
	if topN <= 0 {
		topN = 10
	}
	threshold := q.SellerRevenueThreshold
	if threshold <= 0 {
		threshold = 100000
	}

	total, err := eng.TotalRevenue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n===== Total Revenue =====\n%.2f\n", total)

	aov, err := eng.AverageOrderValue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n===== Average Order Value =====\n%.2f\n", aov)

	cats, err := eng.RevenueByCategory(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\n===== Revenue by Category =====")
	for _, c := range cats {
		fmt.Printf("%-40s %12.2f\n", c.Category, c.Revenue)
	}

	prods, err := eng.TopProducts(ctx, topN)
	if err != nil {
		return err
	}
	fmt.Printf("\n===== Top %d Products by Revenue =====\n", topN)
	for _, p := range prods {
		fmt.Printf("%-36s %12.2f\n", p.ProductID, p.Revenue)
	}

	sellers, err := eng.TopSellers(ctx, topN)
	if err != nil {
		return err
	}
	fmt.Printf("\n===== Top %d Sellers by Revenue =====\n", topN)
	for _, s := range sellers {
		fmt.Printf("%-36s %12.2f\n", s.SellerID, s.Revenue)
	}

	ranks, err := eng.TopProductsPerSeller(ctx, 1)
	if err != nil {
		return err
	}
	fmt.Println("\n===== Top Product per Seller =====")
	for _, r := range ranks {
		fmt.Printf("%-36s %-36s %12.2f\n", r.SellerID, r.ProductID, r.Price)
	}

	ptypes, err := eng.PaymentTypeBreakdown(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\n===== Payment Type Distribution =====")
	for _, p := range ptypes {
		fmt.Printf("%-16s orders=%-8d total=%-14.2f avg=%.2f\n", p.PaymentType, p.Orders, p.Revenue, p.AvgValue)
	}

	custs, err := eng.OrdersPerCustomer(ctx, topN)
	if err != nil {
		return err
	}
	fmt.Printf("\n===== Top %d Customers by Order Count =====\n", topN)
	for _, c := range custs {
		fmt.Printf("%-36s %6d\n", c.CustomerID, c.Orders)
	}

	trend, err := eng.DailyRevenueTrend(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\n===== Daily Revenue Trend =====")
	for _, d := range trend {
		fmt.Printf("%s %12.2f\n", d.Date, d.Revenue)
	}

	unknownCount, unknownRevenue, err := eng.UnknownCategoryStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n===== Data Quality =====\nunknown_category items=%d revenue=%.2f\n", unknownCount, unknownRevenue)

	over, err := eng.SellersOverThreshold(ctx, threshold)
	if err != nil {
		return err
	}
	fmt.Printf("sellers over %.0f: %d\n", threshold, len(over))

	multi, err := eng.MultiPaymentOrders(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("multi-payment orders: %d\n", len(multi))

	anoms, err := eng.PriceAnomalies(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("price<=0 anomalies: %d\n", len(anoms))

	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
