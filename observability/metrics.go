package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
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

	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record API activity per module.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rocket",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
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

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
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

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
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

// PoolMetrics tracks funding flows through the pool engine.
type PoolMetrics struct {
	contributions *prometheus.CounterVec
	contributed   *prometheus.CounterVec
	fees          *prometheus.CounterVec
	withdrawn     *prometheus.CounterVec
	targets       prometheus.Counter
	claims        prometheus.Counter
	claimed       prometheus.Counter
	pauseEngaged  *prometheus.GaugeVec
}

// Pools returns the singleton pool metrics registry.
func Pools() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "pool",
				Name:      "contributions_total",
				Help:      "Count of accepted contributions segmented by token.",
			}, []string{"token"}),
			contributed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "pool",
				Name:      "contributed_amount_total",
				Help:      "Gross contributed base units segmented by token.",
			}, []string{"token"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "pool",
				Name:      "fees_amount_total",
				Help:      "Protocol fees routed to the fee receiver segmented by token.",
			}, []string{"token"}),
			withdrawn: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "pool",
				Name:      "withdrawn_amount_total",
				Help:      "Net custody released to pool receivers segmented by token.",
			}, []string{"token"}),
			targets: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "pool",
				Name:      "targets_reached_total",
				Help:      "Count of pools that reached their funding target.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "pool",
				Name:      "reward_claims_total",
				Help:      "Count of successful reward claims.",
			}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "pool",
				Name:      "reward_claimed_amount_total",
				Help:      "Reward base units paid to contributors.",
			}),
			pauseEngaged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "rocket",
				Name:      "pause_engaged",
				Help:      "Set to 1 while the module is paused by the operator.",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			poolRegistry.contributions,
			poolRegistry.contributed,
			poolRegistry.fees,
			poolRegistry.withdrawn,
			poolRegistry.targets,
			poolRegistry.claims,
			poolRegistry.claimed,
			poolRegistry.pauseEngaged,
		)
	})
	return poolRegistry
}

// RecordContribution counts an accepted contribution and its fee.
func (m *PoolMetrics) RecordContribution(token string, amount, fee *big.Int) {
	if m == nil {
		return
	}
	label := labelAsset(token)
	m.contributions.WithLabelValues(label).Inc()
	m.contributed.WithLabelValues(label).Add(bigToFloat(amount))
	m.fees.WithLabelValues(label).Add(bigToFloat(fee))
}

// RecordWithdrawal adds released custody for token.
func (m *PoolMetrics) RecordWithdrawal(token string, amount *big.Int) {
	if m == nil {
		return
	}
	m.withdrawn.WithLabelValues(labelAsset(token)).Add(bigToFloat(amount))
}

// RecordTarget counts a pool reaching its target.
func (m *PoolMetrics) RecordTarget() {
	if m == nil {
		return
	}
	m.targets.Inc()
}

// RecordClaim counts a paid reward claim.
func (m *PoolMetrics) RecordClaim(amount *big.Int) {
	if m == nil {
		return
	}
	m.claims.Inc()
	m.claimed.Add(bigToFloat(amount))
}

// SetPause toggles the pause_engaged gauge for module.
func (m *PoolMetrics) SetPause(module string, engaged bool) {
	if m == nil {
		return
	}
	module = strings.ToLower(strings.TrimSpace(module))
	if engaged {
		m.pauseEngaged.WithLabelValues(module).Set(1)
		return
	}
	m.pauseEngaged.WithLabelValues(module).Set(0)
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil || value.Sign() < 0 {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
