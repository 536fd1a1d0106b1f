package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit_RegistersOnceAndTolerantOfRepeat(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)
	Init(reg)
	Init(nil)

	ObserveHTTP("GET", "/v1/datasets/{id}/select", 200, 0.01)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("http_requests_total not registered")
	}
}

func TestSelectionMetrics(t *testing.T) {
	before := testutil.ToFloat64(selectionRunsTotal.WithLabelValues("B", "ok"))
	ObserveSelection("B", nil, 12, 0.002)
	ObserveSelection("B", errors.New("boom"), 0, 0.001)

	if got := testutil.ToFloat64(selectionRunsTotal.WithLabelValues("B", "ok")); got != before+1 {
		t.Fatalf("ok runs=%v want %v", got, before+1)
	}
	if got := testutil.ToFloat64(selectionRunsTotal.WithLabelValues("B", "error")); got < 1 {
		t.Fatalf("error runs=%v", got)
	}
}

func TestDatasetRowsGauge_DroppedOnEvict(t *testing.T) {
	SetDatasetRows("u-test", 42)
	if got := testutil.ToFloat64(datasetRows.WithLabelValues("u-test")); got != 42 {
		t.Fatalf("rows=%v", got)
	}
	n := testutil.CollectAndCount(datasetRows)
	DropDataset("u-test")
	if got := testutil.CollectAndCount(datasetRows); got != n-1 {
		t.Fatalf("series after drop=%d want %d", got, n-1)
	}
}

func TestCacheAndInvalidationCounters(t *testing.T) {
	hits := testutil.ToFloat64(cacheResults.WithLabelValues("hit"))
	IncCacheHit()
	IncCacheMiss()
	if got := testutil.ToFloat64(cacheResults.WithLabelValues("hit")); got != hits+1 {
		t.Fatalf("hits=%v want %v", got, hits+1)
	}

	ObserveCacheOp("get", nil, 0.0005)
	ObserveCacheOp("get", errors.New("down"), 0.0005)
	if got := testutil.ToFloat64(cacheOpsTotal.WithLabelValues("get", "error")); got < 1 {
		t.Fatalf("cache op errors=%v", got)
	}

	ObserveInvalidation("reload", nil)
	if got := testutil.ToFloat64(invalidationsTotal.WithLabelValues("reload", "ok")); got < 1 {
		t.Fatalf("invalidations=%v", got)
	}
	IncKafkaConsumerError("decode")
	if got := testutil.ToFloat64(kafkaConsumerErrors.WithLabelValues("decode")); got < 1 {
		t.Fatalf("kafka errors=%v", got)
	}
	dropped := testutil.ToFloat64(runEventsTotal.WithLabelValues("dropped"))
	IncRunEvent("dropped")
	if got := testutil.ToFloat64(runEventsTotal.WithLabelValues("dropped")); got != dropped+1 {
		t.Fatalf("dropped run events=%v want %v", got, dropped+1)
	}

	SetHotKeysGauge(3)
	if got := testutil.ToFloat64(hotKeys); got != 3 {
		t.Fatalf("hot keys=%v", got)
	}
}
