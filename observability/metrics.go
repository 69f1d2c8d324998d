package observability

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shark",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shark",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "shark",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shark",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LendingMetrics captures executor outcomes and pool liquidity.
type LendingMetrics struct {
	actions   *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	messages  *prometheus.CounterVec
	available prometheus.Gauge
	used      prometheus.Gauge
}

// Lending returns the lazily-initialised lending metrics registry.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shark",
				Subsystem: "lending",
				Name:      "actions_total",
				Help:      "Lending actions executed, segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "shark",
				Subsystem: "lending",
				Name:      "action_duration_seconds",
				Help:      "Latency of lending actions including oracle queries.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"action"}),
			messages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shark",
				Subsystem: "lending",
				Name:      "messages_total",
				Help:      "Outbound instructions applied, segmented by kind.",
			}, []string{"kind"}),
			available: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "shark",
				Subsystem: "lending",
				Name:      "pool_available",
				Help:      "Funds available to borrow.",
			}),
			used: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "shark",
				Subsystem: "lending",
				Name:      "pool_used",
				Help:      "Funds currently lent out.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.actions,
			lendingRegistry.latency,
			lendingRegistry.messages,
			lendingRegistry.available,
			lendingRegistry.used,
		)
	})
	return lendingRegistry
}

// RecordAction records one executed action. outcome is "success" or a stable
// error class such as "insufficient_collateral".
func (m *LendingMetrics) RecordAction(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	if outcome == "" {
		outcome = "success"
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.latency.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordMessage counts an applied outbound instruction.
func (m *LendingMetrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

// SetPool publishes the pool balances.
func (m *LendingMetrics) SetPool(available, used *big.Int) {
	if m == nil {
		return
	}
	m.available.Set(bigToFloat(available))
	m.used.Set(bigToFloat(used))
}

// OracleMetrics tracks AMM queries.
type OracleMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// Oracle returns the lazily-initialised oracle metrics registry.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shark",
				Subsystem: "oracle",
				Name:      "requests_total",
				Help:      "AMM oracle queries segmented by query and outcome.",
			}, []string{"query", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "shark",
				Subsystem: "oracle",
				Name:      "request_duration_seconds",
				Help:      "Latency of AMM oracle queries.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"query"}),
		}
		prometheus.MustRegister(oracleRegistry.requests, oracleRegistry.latency)
	})
	return oracleRegistry
}

// Observe records one oracle query.
func (m *OracleMetrics) Observe(query string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(query, outcome).Inc()
	m.latency.WithLabelValues(query).Observe(duration.Seconds())
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
