// Package observability holds the service's Prometheus collectors and the
// helpers that record into them.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	selectionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_runs_total",
			Help: "Selection method executions by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	selectionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "selection_duration_seconds",
			Help:    "Time spent executing a selection method.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"method"},
	)

	selectionRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "selection_result_rows",
			Help:    "Rows produced by a selection method before truncation.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"method"},
	)

	datasetLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_loads_total",
			Help: "Dataset registry lookups by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	datasetLoadSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_load_duration_seconds",
			Help:    "Time spent parsing a dataset CSV.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"source"},
	)

	datasetRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_rows",
			Help: "Rows held by each cached dataset.",
		},
		[]string{"dataset"},
	)

	cacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"op"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	hotKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotness_tracked_keys",
			Help: "Number of keys tracked by the hotness model.",
		},
	)

	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_invalidations_total",
			Help: "Dataset invalidation events by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	runEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "run_events_total",
			Help: "Run events handed to Kafka by outcome (queued, dropped, error).",
		},
		[]string{"outcome"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		selectionRunsTotal, selectionDurationSeconds, selectionRows,
		datasetLoadsTotal, datasetLoadSeconds, datasetRows,
		cacheOpsTotal, cacheOpSeconds, cacheResults, hotKeys,
		authAttemptsTotal,
		invalidationsTotal, kafkaConsumerErrors, runEventsTotal,
	}
}

// Init registers every collector with reg. Registering twice on the same
// registry is a no-op.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveSelection(method string, err error, rows int, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	selectionRunsTotal.WithLabelValues(method, outcome).Inc()
	selectionDurationSeconds.WithLabelValues(method).Observe(durationSeconds)
	if err == nil {
		selectionRows.WithLabelValues(method).Observe(float64(rows))
	}
}

// outcome is one of hit, load, reload, error
func IncDatasetLoad(source, outcome string) {
	datasetLoadsTotal.WithLabelValues(source, outcome).Inc()
}

func ObserveDatasetParse(source string, durationSeconds float64) {
	datasetLoadSeconds.WithLabelValues(source).Observe(durationSeconds)
}

func SetDatasetRows(id string, n int) {
	datasetRows.WithLabelValues(id).Set(float64(n))
}

func DropDataset(id string) {
	datasetRows.DeleteLabelValues(id)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpsTotal.WithLabelValues(op, result).Inc()
	cacheOpSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func SetHotKeysGauge(n int) { hotKeys.Set(float64(n)) }

func IncAuthAttempt(outcome string) {
	authAttemptsTotal.WithLabelValues(outcome).Inc()
}

func ObserveInvalidation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	invalidationsTotal.WithLabelValues(op, outcome).Inc()
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func IncRunEvent(outcome string) {
	runEventsTotal.WithLabelValues(outcome).Inc()
}
