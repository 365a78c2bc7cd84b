package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)

	rec.RecordCycle("new_high", 10*time.Millisecond)
	rec.RecordCycle("unchanged", time.Millisecond)
	rec.RecordCycle("unchanged", time.Millisecond)
	rec.RecordError("fetch")
	rec.RecordPrice(45000)
	rec.RecordATH(46000)

	if got := testutil.ToFloat64(rec.cycles.WithLabelValues("unchanged")); got != 2 {
		t.Fatalf("expected 2 unchanged cycles, got %v", got)
	}
	if got := testutil.ToFloat64(rec.errors.WithLabelValues("fetch")); got != 1 {
		t.Fatalf("expected 1 fetch error, got %v", got)
	}
	if got := testutil.ToFloat64(rec.lastPrice); got != 45000 {
		t.Fatalf("unexpected last price %v", got)
	}
	if got := testutil.ToFloat64(rec.ath); got != 46000 {
		t.Fatalf("unexpected ath %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.RecordCycle("x", time.Second)
	rec.RecordError("x")
	rec.RecordPrice(1)
	rec.RecordATH(1)
}
