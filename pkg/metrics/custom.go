package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "anchorex"

var (
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_status_transitions_total",
			Help:      "Deposit status transitions, by target status.",
		},
		[]string{"status"},
	)

	LedgerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_ledger_requests_total",
			Help:      "Ledger adapter calls.",
		},
		[]string{"op", "result"}, // op: get_account/base_fee/submit, result: ok/not_found/error
	)

	LedgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deposit_ledger_request_duration_seconds",
			Help:      "Ledger adapter latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms ~ 20s
		},
		[]string{"op"},
	)

	PassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deposit_pass_duration_seconds",
			Help:      "Duration of one scheduler pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"runner"},
	)

	NotifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_notify_failures_total",
			Help:      "Failed status-change notifications.",
		},
		[]string{"sink"},
	)

	CBState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deposit_circuitbreaker_state",
			Help:      "Circuit breaker state (0/1).",
		},
		[]string{"name", "state"}, // state: closed/open/half_open
	)
)

var once sync.Once

// MustRegister 多次调用安全
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(StatusTransitions, LedgerRequests, LedgerDuration, PassDuration, NotifyFailures, CBState)
	})
}
