package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Metrics returns a middleware that collects Prometheus metrics
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.status)

			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RefreshMetrics holds Prometheus metrics for the refresh cycle
type RefreshMetrics struct {
	CyclesTotal    prometheus.Counter
	CyclesFailed   prometheus.Counter
	CycleDuration  prometheus.Histogram
	PortfolioValue prometheus.Gauge
	StaleAssets    prometheus.Gauge
	PartialWallets prometheus.Gauge
}

// NewRefreshMetrics creates new refresh cycle metrics
func NewRefreshMetrics() *RefreshMetrics {
	return &RefreshMetrics{
		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "valuator_refresh_cycles_total",
			Help: "Total number of refresh cycles started",
		}),
		CyclesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "valuator_refresh_cycles_failed_total",
			Help: "Total number of refresh cycles that failed",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "valuator_refresh_cycle_duration_seconds",
			Help:    "Time taken to run one refresh cycle",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		PortfolioValue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "valuator_portfolio_value_usd",
			Help: "Total portfolio value from the last committed snapshot",
		}),
		StaleAssets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "valuator_stale_assets",
			Help: "Assets carrying a stale price in the last snapshot",
		}),
		PartialWallets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "valuator_partial_wallets",
			Help: "Wallets with incomplete holdings in the last snapshot",
		}),
	}
}
