package prompush

import (
	"testing"

	"retailfact/internal/metrics"
)

func TestNewBackendRequiresURL(t *testing.T) {
	if _, err := NewBackend("retailfact", ""); err == nil {
		t.Fatal("expected error for empty gateway URL")
	}
}

func TestNewBackendDefaultsJobName(t *testing.T) {
	b, err := NewBackend("", "http://localhost:9091")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	if b.jobName != "retailfact" {
		t.Fatalf("job name = %q", b.jobName)
	}
}

func TestIncCounterRoutesByName(t *testing.T) {
	b, err := NewBackend("retailfact", "http://localhost:9091")
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	b.IncCounter("retailfact_stage_total", 1, metrics.Labels{"stage": "write", "status": "success"})
	b.IncCounter("retailfact_records_total", 42, metrics.Labels{"kind": "fact_rows"})
	b.IncCounter("retailfact_partitions_total", 3, metrics.Labels{"status": "success"})
	b.IncCounter("some_other_metric", 99, nil) // ignored
	b.ObserveHistogram("retailfact_stage_duration_seconds", 0.5, metrics.Labels{"stage": "write", "status": "success"})
	b.ObserveHistogram("some_other_metric", 1, nil) // ignored

	fams, err := b.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := make(map[string]float64)
	for _, mf := range fams {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				got[mf.GetName()] += c.GetValue()
			}
		}
	}
	if got["retailfact_stage_total"] != 1 {
		t.Errorf("stage_total = %v", got["retailfact_stage_total"])
	}
	if got["retailfact_records_total"] != 42 {
		t.Errorf("records_total = %v", got["retailfact_records_total"])
	}
	if got["retailfact_partitions_total"] != 3 {
		t.Errorf("partitions_total = %v", got["retailfact_partitions_total"])
	}
	if _, ok := got["some_other_metric"]; ok {
		t.Error("unknown metric registered")
	}
}
