// Package metrics exposes Prometheus instrumentation for the credit ledger.
// Every observer is a no-op until Init has run.
package metrics

import (
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "solar_credits_"

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	operationsTotal  *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	creditsAllocated prometheus.Counter
	creditsClaimed   prometheus.Counter
	recoveredPeriods prometheus.Counter
)

// Init registers the collectors with the default registry. When db is
// non-nil its connection pool stats are exported too.
func Init(db *sql.DB) {
	registerOnce.Do(func() {
		operationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Ledger operations by operation and result",
			},
			[]string{"operation", "result"},
		)
		operationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_latency_seconds",
				Help:    "Ledger operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "period_transitions_total",
				Help: "Production period status transitions by target status",
			},
			[]string{"status"},
		)
		creditsAllocated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "credits_allocated_total",
			Help: "Net credits added to allocations; corrections count only their increase",
		})
		creditsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "credits_claimed_total",
			Help: "Credits claimed by owners",
		})
		recoveredPeriods = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "recovered_periods_total",
			Help: "Periods completed by the finalization recovery sweep",
		})

		prometheus.MustRegister(
			operationsTotal,
			operationLatency,
			transitionsTotal,
			creditsAllocated,
			creditsClaimed,
			recoveredPeriods,
		)

		if db != nil {
			registerDBMetrics(db)
		}
	})
}

func registerDBMetrics(db *sql.DB) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open database connections",
		}, func() float64 { return float64(db.Stats().OpenConnections) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: metricPrefix + "db_wait_count",
			Help: "Connections waited for",
		}, func() float64 { return float64(db.Stats().WaitCount) }),
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOperation records one operation's result and latency since start.
func ObserveOperation(operation, result string, start time.Time) {
	if result == "" {
		result = ResultSuccess
	}
	if operationsTotal != nil {
		operationsTotal.WithLabelValues(operation, result).Inc()
	}
	if operationLatency != nil {
		operationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// IncTransition counts a period entering status.
func IncTransition(status string) {
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(status).Inc()
	}
}

// AddCreditsAllocated counts growth of allocated credits. Callers pass the
// net change of a correction, never the gross amount.
func AddCreditsAllocated(credits int64) {
	if creditsAllocated != nil && credits > 0 {
		creditsAllocated.Add(float64(credits))
	}
}

func AddCreditsClaimed(credits int64) {
	if creditsClaimed != nil && credits > 0 {
		creditsClaimed.Add(float64(credits))
	}
}

func AddRecovered(count int) {
	if recoveredPeriods != nil && count > 0 {
		recoveredPeriods.Add(float64(count))
	}
}
