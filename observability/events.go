package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"rocket/core/events"
	"rocket/crypto"
)

type eventMetrics struct {
	emitted   *prometheus.CounterVec
	transfers *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed domain events. It
// doubles as an events.Emitter so it can sit in the daemon's fan-out.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed domain events segmented by type.",
			}, []string{"type"}),
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rocket",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of token transfers segmented by symbol.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.transfers)
	})
	return eventRegistry
}

// RecordTransfer increments the transfer counter for the supplied asset ticker.
func (m *eventMetrics) RecordTransfer(asset string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(asset))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(evt.EventType()).Inc()
	pools := Pools()
	switch e := evt.(type) {
	case events.TokenTransfer:
		m.RecordTransfer(e.Symbol)
	case events.Contributed:
		pools.RecordContribution(crypto.FormatAccount(e.Token), e.Amount, e.Fee)
	case events.PoolTargetCompleted:
		pools.RecordTarget()
	case events.PoolFundsWithdrawn:
		pools.RecordWithdrawal(crypto.FormatAccount(e.Token), e.Amount)
	case events.PoolRewardClaimed:
		pools.RecordClaim(e.Amount)
	}
}
