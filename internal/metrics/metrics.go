// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the pipeline.
//
// It exposes a narrow Backend interface (counters and timing data) behind a
// global, pluggable backend that defaults to a no-op implementation, so
// metrics are always safe to call even when nothing is configured. Concrete
// metric systems stay isolated in subpackages (see prompush).
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes collected metrics if the backend needs it (Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStage measures one pipeline stage: latency plus success/failure.
// Stages are the pipeline phases: parse, clean, resolve, build, write, query.
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "stage": stage, "status": status}
	backend.IncCounter("retailfact_stage_total", 1, lbls)
	backend.ObserveHistogram("retailfact_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a record-level counter for the given job and kind.
// Kinds mirror the run summary fields: "read", "rejected", "deduped",
// "anomalies", "orphan_payments", "fact_rows".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("retailfact_records_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordPartitions increments the written-partition counter with the write
// outcome ("success", "conflict", "failure").
func RecordPartitions(job, status string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("retailfact_partitions_total", float64(delta), Labels{
		"job":    job,
		"status": status,
	})
}
