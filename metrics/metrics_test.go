package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncPage("ok")
	m.ObserveDuration("page", time.Second)
	m.AddRows(3)
	m.IncRowSkipped()
	m.IncChunk("ok")
	m.IncRateLimited()
	m.IncError("timeout")
	m.AddReconciled("dropped", 1)
}

func TestCounters(t *testing.T) {
	m := New()
	m.IncPage("ok")
	m.IncPage("ok")
	m.IncPage("failed")
	m.AddRows(5)
	m.AddRows(0)
	m.IncRateLimited()

	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok pages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed pages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RowsAggregatedTotal); got != 5 {
		t.Fatalf("rows = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.RateLimitedTotal); got != 1 {
		t.Fatalf("rate limited = %v, want 1", got)
	}
}
