// Package metrics provides Prometheus instrumentation for the SecureChain backend.
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
			Namespace: "securechain",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "securechain",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransfersTotal counts wallet transfers by terminal status.
	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "securechain",
			Name:      "transfers_total",
			Help:      "Total wallet transfers by terminal status (completed, failed, rejected).",
		},
		[]string{"status"},
	)

	// DepositsTotal counts mock deposits by payment method and result.
	DepositsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "securechain",
			Name:      "deposits_total",
			Help:      "Total mock deposits by payment method and result.",
		},
		[]string{"method", "result"},
	)

	// FraudScore observes the distribution of fraud scores on scored transfers.
	FraudScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "securechain",
		Name:      "fraud_score",
		Help:      "Distribution of fraud scores assigned to transfers.",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
	})

	// FraudLabelsTotal counts risk labels assigned to scored transfers.
	FraudLabelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "securechain",
			Name:      "fraud_labels_total",
			Help:      "Total risk labels assigned (Clear, Review, Suspicious).",
		},
		[]string{"label"},
	)

	// ModelRetrainsTotal counts anomaly model retrain attempts by result.
	ModelRetrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "securechain",
			Name:      "model_retrains_total",
			Help:      "Total anomaly model retrain attempts by result.",
		},
		[]string{"result"},
	)

	// ModelTrained reports whether the anomaly model is currently trained (1) or
	// still on the rule-based fallback (0).
	ModelTrained = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "securechain",
		Name:      "model_trained",
		Help:      "1 when the anomaly model is trained, 0 when rule-based fallback is active.",
	})

	// ChainLength tracks the number of blocks in the ledger.
	ChainLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "securechain",
		Name:      "chain_length",
		Help:      "Number of blocks in the ledger chain.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "securechain", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "securechain", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "securechain", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "securechain", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransfersTotal,
		DepositsTotal,
		FraudScore,
		FraudLabelsTotal,
		ModelRetrainsTotal,
		ModelTrained,
		ChainLength,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
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
