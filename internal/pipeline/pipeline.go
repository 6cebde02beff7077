// Package pipeline orchestrates one batch run: parse and clean the seven
// entity streams concurrently, resolve join multiplicities, build the fact
// table, and replace the affected date partitions. Different orders flow
// independently, but an order's resolution always completes before its fact
// rows are emitted: Resolve returns before Build starts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"retailfact/internal/clean"
	"retailfact/internal/config"
	"retailfact/internal/datasource/file"
	"retailfact/internal/fact"
	"retailfact/internal/metrics"
	csvparser "retailfact/internal/parser/csv"
	"retailfact/internal/resolve"
	"retailfact/internal/schema"
	"retailfact/internal/storage"
	"retailfact/pkg/records"
)

// Summary is the explicit run-state accumulator threaded through the stages
// and returned to the caller. No rejection is silently dropped: everything
// excluded along the way is counted here.
type Summary struct {
	Job string

	// Per-entity stream accounting.
	Read        map[string]int // rows parsed per entity
	ParseErrors map[string]int // malformed CSV rows skipped per entity
	Rejected    int            // schema validation rejections (all entities)
	Deduped     map[string]int // duplicate rows collapsed per entity

	// Value-domain exclusions, by reason (invalid_price, invalid_timestamp).
	Anomalies map[string]int

	// Resolver and builder outcomes.
	OrphanPayments     int // payments whose order has no order-items
	MultiPaymentOrders int
	ItemsWithoutOrder  int
	Orders             int
	FactRows           int

	// Partition write outcomes, ordered by date.
	Partitions []storage.PartitionResult

	Elapsed time.Duration
}

// FailedPartitions returns the dates whose writes failed.
func (s *Summary) FailedPartitions() []string {
	var out []string
	for _, p := range s.Partitions {
		if p.Err != nil {
			out = append(out, p.Date)
		}
	}
	return out
}

type streams struct {
	customers []schema.Customer
	orders    []schema.Order
	items     []schema.OrderItem
	payments  []schema.Payment
	products  []schema.Product
	sellers   []schema.Seller
	reviews   []schema.Review
}

// Run executes the pipeline described by cfg against the given store. The
// returned Summary is non-nil whenever the run reached the write stage;
// per-partition failures are reported both in the Summary and in the joined
// error, with the partition key attached.
func Run(ctx context.Context, cfg config.Pipeline, store storage.Store, locks *storage.PartitionLocks) (*Summary, error) {
	start := time.Now()
	job := cfg.Job
	if job == "" {
		job = "retailfact"
	}
	sum := &Summary{
		Job:         job,
		Read:        make(map[string]int),
		ParseErrors: make(map[string]int),
		Deduped:     make(map[string]int),
		Anomalies:   make(map[string]int),
	}
	sink := clean.NewSink()

	// Stage 1: parse + clean each configured stream, concurrently per
	// entity. Cleaning is independent per entity type.
	var st streams
	stageStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	workers := cfg.Runtime.CleanWorkers
	if workers <= 0 {
		workers = len(schema.Contracts())
	}
	g.SetLimit(workers)

	type loader struct {
		entity string
		decode func([]records.Record)
	}
	loaders := []loader{
		{schema.EntityCustomers, func(in []records.Record) { st.customers = clean.Customers(in, sink) }},
		{schema.EntityOrders, func(in []records.Record) { st.orders = clean.Orders(in, sink) }},
		{schema.EntityOrderItems, func(in []records.Record) { st.items = clean.OrderItems(in, sink) }},
		{schema.EntityPayments, func(in []records.Record) { st.payments = clean.Payments(in, sink) }},
		{schema.EntityProducts, func(in []records.Record) { st.products = clean.Products(in, sink) }},
		{schema.EntitySellers, func(in []records.Record) { st.sellers = clean.Sellers(in, sink) }},
		{schema.EntityReviews, func(in []records.Record) { st.reviews = clean.Reviews(in, sink) }},
	}
	var (
		readMu      sync.Mutex
		parseErrors = make(map[string]int)
		read        = make(map[string]int)
	)
	for _, ld := range loaders {
		path := cfg.Source.Files[ld.entity]
		if path == "" {
			continue
		}
		if cfg.Source.Dir != "" {
			path = cfg.Source.Dir + "/" + path
		}
		g.Go(func() error {
			recs, errs, err := parseStream(gctx, path, ld.entity, cfg.Parser.Options)
			if err != nil {
				return fmt.Errorf("%s: %w", ld.entity, err)
			}
			readMu.Lock()
			read[ld.entity] = len(recs)
			parseErrors[ld.entity] = errs
			readMu.Unlock()
			ld.decode(recs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordStage(job, "clean", err, time.Since(stageStart))
		return nil, err
	}
	sum.Read = read
	sum.ParseErrors = parseErrors
	sum.Rejected = len(sink.Rejects())
	sum.Deduped = sink.DedupedCounts()
	for _, a := range sink.Anomalies() {
		sum.Anomalies[a.Reason]++
	}
	metrics.RecordStage(job, "clean", nil, time.Since(stageStart))
	for entity, n := range read {
		metrics.RecordRows(job, "read_"+entity, int64(n))
	}
	metrics.RecordRows(job, "rejected", int64(sum.Rejected))

	// Stage 2: resolve multiplicities.
	stageStart = time.Now()
	res := resolve.Resolve(st.items, st.payments)
	sum.OrphanPayments = res.OrphanPayments
	for _, r := range res.Resolutions {
		if r.MultiPayment {
			sum.MultiPaymentOrders++
		}
	}
	metrics.RecordStage(job, "resolve", nil, time.Since(stageStart))
	metrics.RecordRows(job, "orphan_payments", int64(res.OrphanPayments))

	// Stage 3: build fact rows.
	stageStart = time.Now()
	orders := st.orders
	if cfg.Window.From != "" {
		orders = filterWindow(orders, cfg.Window)
	}
	rows, stats := fact.Build(orders, st.products, res)
	sum.Orders = stats.Orders
	sum.FactRows = stats.Rows
	sum.ItemsWithoutOrder = stats.ItemsWithoutOrder
	metrics.RecordStage(job, "build", nil, time.Since(stageStart))
	metrics.RecordRows(job, "fact_rows", int64(stats.Rows))

	// Stage 4: persist. The anomaly sink is rewritten first; partition
	// replacement is atomic per date, and a window run replaces every date
	// in the window even when no rows survived for it.
	stageStart = time.Now()
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if err := store.ReplaceAnomalies(ctx, sink.Anomalies()); err != nil {
		return nil, err
	}
	parts := storage.GroupByPartition(rows)
	for _, date := range windowDates(cfg.Window) {
		if _, ok := parts[date]; !ok {
			parts[date] = nil
		}
	}
	sum.Partitions = storage.WritePartitions(ctx, store, locks, parts, cfg.Runtime.WriteWorkers)

	var writeErrs []error
	for _, p := range sum.Partitions {
		switch {
		case p.Err == nil:
			metrics.RecordPartitions(job, "success", 1)
		case errors.Is(p.Err, storage.ErrWriteConflict):
			metrics.RecordPartitions(job, "conflict", 1)
			writeErrs = append(writeErrs, fmt.Errorf("partition %s: %w", p.Date, p.Err))
		default:
			metrics.RecordPartitions(job, "failure", 1)
			writeErrs = append(writeErrs, fmt.Errorf("partition %s: %w", p.Date, p.Err))
		}
	}
	err := errors.Join(writeErrs...)
	metrics.RecordStage(job, "write", err, time.Since(stageStart))

	sum.Elapsed = time.Since(start)
	log.Printf("run %s: orders=%d fact_rows=%d rejected=%d anomalies=%d orphans=%d partitions=%d elapsed=%s",
		job, sum.Orders, sum.FactRows, sum.Rejected, len(sink.Anomalies()), sum.OrphanPayments,
		len(sum.Partitions), sum.Elapsed.Truncate(time.Millisecond))
	return sum, err
}

func parseStream(ctx context.Context, path, entity string, opts config.Options) ([]records.Record, int, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	contract := schema.Contracts()[entity]
	errs := 0
	recs, err := csvparser.StreamRecords(ctx, rc, contract, opts, func(line int, err error) {
		errs++
		log.Printf("parse %s: line %d: %v", entity, line, err)
	})
	return recs, errs, err
}

func filterWindow(orders []schema.Order, w config.RunWindow) []schema.Order {
	out := orders[:0]
	for _, o := range orders {
		d := o.PurchaseDate()
		if d >= w.From && d <= w.To {
			out = append(out, o)
		}
	}
	return out
}

// windowDates expands an inclusive window into its partition dates; an empty
// window yields nothing (partitions then come from the data alone).
func windowDates(w config.RunWindow) []string {
	if w.From == "" || w.To == "" {
		return nil
	}
	from, err1 := time.Parse(schema.DateLayout, w.From)
	to, err2 := time.Parse(schema.DateLayout, w.To)
	if err1 != nil || err2 != nil || from.After(to) {
		return nil
	}
	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(schema.DateLayout))
	}
	sort.Strings(out)
	return out
}
