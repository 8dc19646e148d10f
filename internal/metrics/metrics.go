package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerdherd/push-relay/internal/credential"
	"github.com/nerdherd/push-relay/internal/token"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	PushRequests      *prometheus.CounterVec
	PushLatency       *prometheus.HistogramVec
	CredentialTiers   *prometheus.CounterVec
	TokenExchanges    *prometheus.CounterVec
	TokenExchangeTime prometheus.Histogram
	TokenCacheLookups *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
	SuppressedTargets prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PushRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_requests_total",
			Help: "Push requests by terminal pipeline stage.",
		}, []string{"stage"}),

		PushLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "push_request_seconds",
			Help:    "End-to-end pipeline latency from request to relayed response.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),

		CredentialTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_parse_tier_total",
			Help: "Service account parses by the tier that succeeded.",
		}, []string{"tier"}),

		TokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_exchanges_total",
			Help: "Round trips to the OAuth2 token endpoint by outcome.",
		}, []string{"outcome"}),

		TokenExchangeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "token_exchange_seconds",
			Help:    "Latency of token endpoint round trips.",
			Buckets: prometheus.DefBuckets,
		}),

		TokenCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_cache_lookups_total",
			Help: "Cached token lookups by result.",
		}, []string{"result"}),

		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fcm_deliveries_total",
			Help: "FCM send responses by HTTP status code.",
		}, []string{"code"}),

		SuppressedTargets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fcm_suppressed_targets_total",
			Help: "Device tokens suppressed after FCM reported them unregistered.",
		}),
	}

	reg.MustRegister(
		m.PushRequests,
		m.PushLatency,
		m.CredentialTiers,
		m.TokenExchanges,
		m.TokenExchangeTime,
		m.TokenCacheLookups,
		m.Deliveries,
		m.SuppressedTargets,
	)

	return m
}

// TierHook feeds credential.Loader.
func (m *Metrics) TierHook() func(credential.Tier) {
	return func(t credential.Tier) {
		m.CredentialTiers.WithLabelValues(string(t)).Inc()
	}
}

// TokenHooks returns the callbacks expected by the token package.
func (m *Metrics) TokenHooks() token.Hooks {
	return token.Hooks{
		OnExchange: func(outcome string, latency time.Duration) {
			m.TokenExchanges.WithLabelValues(outcome).Inc()
			m.TokenExchangeTime.Observe(latency.Seconds())
		},
		OnCacheLookup: func(hit bool) {
			result := "miss"
			if hit {
				result = "hit"
			}
			m.TokenCacheLookups.WithLabelValues(result).Inc()
		},
	}
}

// PipelineHooks returns the callbacks used by the push service.
func (m *Metrics) PipelineHooks() (
	onFinish func(stage string, latency time.Duration),
	onDelivered func(statusCode int),
	onSuppressed func(),
) {
	onFinish = func(stage string, latency time.Duration) {
		m.PushRequests.WithLabelValues(stage).Inc()
		m.PushLatency.WithLabelValues(stage).Observe(latency.Seconds())
	}
	onDelivered = func(statusCode int) {
		m.Deliveries.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	}
	onSuppressed = func() {
		m.SuppressedTargets.Inc()
	}
	return
}
