package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chainvault/walletgate/pkg/constants"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	WalletOperations  *prometheus.CounterVec
	BalanceRefreshes  *prometheus.CounterVec
	RefreshLatency    *prometheus.HistogramVec
	ChallengesIssued  *prometheus.CounterVec
	ChallengeOutcomes *prometheus.CounterVec
	Activations       *prometheus.CounterVec
	ActivationLatency prometheus.Histogram
	RateLimitHits     prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec
}

// NewMetrics creates and registers the Prometheus metrics on reg. Pass
// a fresh registry in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WalletOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_wallet_operations_total",
				Help: "Total number of wallet mutations by operation and chain.",
			},
			[]string{"operation", "chain"},
		),
		BalanceRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_balance_refreshes_total",
				Help: "Total number of balance refresh attempts by chain and result.",
			},
			[]string{"chain", "result"},
		),
		RefreshLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletgate_balance_refresh_latency_seconds",
				Help:    "Latency of balance fetches.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain"},
		),
		ChallengesIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_challenges_issued_total",
				Help: "Total number of authorization challenges issued by chain.",
			},
			[]string{"chain"},
		),
		ChallengeOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_challenge_outcomes_total",
				Help: "Total number of challenge submissions by outcome.",
			},
			[]string{"outcome"},
		),
		Activations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_strategy_activations_total",
				Help: "Total number of strategy activation attempts by result.",
			},
			[]string{"result"},
		),
		ActivationLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "walletgate_strategy_activation_latency_seconds",
				Help:    "End-to-end latency of authorize-and-activate flows.",
				Buckets: prometheus.DefBuckets,
			},
		),
		RateLimitHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "walletgate_challenge_rate_limit_hits_total",
				Help: "Total number of challenge requests rejected by rate limiting.",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletgate_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletgate_http_request_latency_seconds",
				Help:    "Latency of HTTP requests by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordWalletOperation counts one wallet mutation.
func (m *Metrics) RecordWalletOperation(operation string, chain constants.ChainID) {
	m.WalletOperations.WithLabelValues(operation, string(chain)).Inc()
}

// RecordBalanceRefresh counts one refresh attempt and its latency.
func (m *Metrics) RecordBalanceRefresh(chain constants.ChainID, result string, duration time.Duration) {
	m.BalanceRefreshes.WithLabelValues(string(chain), result).Inc()
	m.RefreshLatency.WithLabelValues(string(chain)).Observe(duration.Seconds())
}

// RecordChallengeIssued counts one issued challenge.
func (m *Metrics) RecordChallengeIssued(chain constants.ChainID) {
	m.ChallengesIssued.WithLabelValues(string(chain)).Inc()
}

// RecordChallengeOutcome counts one challenge submission outcome
// (consumed, expired, invalid_signature, not_found, already_consumed).
func (m *Metrics) RecordChallengeOutcome(outcome string) {
	m.ChallengeOutcomes.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest counts one HTTP request and its latency. path must
// be the route template, not the raw URL, to bound label cardinality.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPLatency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordActivation counts one activation attempt and its latency.
func (m *Metrics) RecordActivation(result string, duration time.Duration) {
	m.Activations.WithLabelValues(result).Inc()
	m.ActivationLatency.Observe(duration.Seconds())
}

// RecordRateLimitHit counts one throttled challenge request.
func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitHits.Inc()
}
