// Package metrics provides Prometheus instrumentation for the payment router.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payrails",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RouteDecisionsTotal counts routing decisions by selected processor and mode.
	RouteDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "route_decisions_total",
			Help:      "Total routing decisions by selected processor and decision mode.",
		},
		[]string{"processor", "mode"},
	)

	// RouteRejectionsTotal counts route requests rejected with no viable processor.
	RouteRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "route_rejections_total",
			Help:      "Total route requests with no viable processor.",
		},
	)

	// FallbackChainDepth observes the fallback chain length per decision.
	FallbackChainDepth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "payrails",
			Name:      "fallback_chain_depth",
			Help:      "Number of fallback processors attached to each decision.",
			Buckets:   []float64{0, 1, 2, 3},
		},
	)

	// RiskAssessmentsTotal counts risk assessments by overall level.
	RiskAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "risk_assessments_total",
			Help:      "Total freeze risk assessments by overall level.",
		},
		[]string{"level"},
	)

	// RiskFactorsTotal counts detected risk factors by pattern and severity.
	RiskFactorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "risk_factors_total",
			Help:      "Total detected risk factors by pattern and severity.",
		},
		[]string{"pattern", "severity"},
	)

	// RiskAssessmentDuration observes full risk assessment latency.
	RiskAssessmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "payrails",
			Name:      "risk_assessment_duration_seconds",
			Help:      "Freeze risk assessment duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ProcessorFreezeRisk tracks the current freeze risk score per processor.
	ProcessorFreezeRisk = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "payrails",
			Name:      "processor_freeze_risk",
			Help:      "Current freeze risk score per processor (0 to 1).",
		},
		[]string{"processor"},
	)

	// ProcessorFrozen tracks whether a processor is currently frozen (1) or not (0).
	ProcessorFrozen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "payrails",
			Name:      "processor_frozen",
			Help:      "Whether a processor is currently frozen (1) or available (0).",
		},
		[]string{"processor"},
	)

	// AdvisorCallsTotal counts decision advisor calls by result.
	AdvisorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "advisor_calls_total",
			Help:      "Total decision advisor calls by result (ok, error, rejected).",
		},
		[]string{"result"},
	)

	// InsightsLookupsTotal counts market insight lookups by source.
	InsightsLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "insights_lookups_total",
			Help:      "Total market insight lookups by source (cache, live, synthetic).",
		},
		[]string{"source"},
	)

	// LedgerTransactionsTotal counts ledger transactions recorded by type.
	LedgerTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payrails",
			Name:      "ledger_transactions_total",
			Help:      "Total ledger transactions recorded by type.",
		},
		[]string{"type"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "payrails", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "payrails", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "payrails", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "payrails", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "payrails", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "payrails", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RouteDecisionsTotal,
		RouteRejectionsTotal,
		FallbackChainDepth,
		RiskAssessmentsTotal,
		RiskFactorsTotal,
		RiskAssessmentDuration,
		ProcessorFreezeRisk,
		ProcessorFrozen,
		AdvisorCallsTotal,
		InsightsLookupsTotal,
		LedgerTransactionsTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
