// Package metrics exposes prometheus collectors for weather resolution and
// text completion outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "skynow"

// Lookup sources recorded by the resolver.
const (
	SourceCache    = "cache"
	SourceStore    = "store"
	SourceProvider = "provider"
	SourceArchive  = "archive"
	SourceNone     = "none"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so components can take it as an optional dependency.
type Metrics struct {
	resolverLookups     *prometheus.CounterVec
	providerRequests    *prometheus.CounterVec
	completionAttempts  *prometheus.CounterVec
	completionFallbacks *prometheus.CounterVec
	alertsRaised        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		resolverLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolver_lookups_total",
				Help:      "Resolver answers by operation and the tier that served them",
			},
			[]string{"op", "source"},
		),
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Outbound weather provider requests",
			},
			[]string{"provider", "op", "status"},
		),
		completionAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_attempts_total",
				Help:      "Completion API attempts per candidate model",
			},
			[]string{"model", "status"}, // status: success, rate_limited, error
		),
		completionFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completion_fallbacks_total",
				Help:      "Locally synthesized replies served after every candidate failed",
			},
			[]string{"kind"},
		),
		alertsRaised: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_raised_total",
				Help:      "Temperature alerts raised per city",
			},
			[]string{"city"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.resolverLookups,
		m.providerRequests,
		m.completionAttempts,
		m.completionFallbacks,
		m.alertsRaised,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ResolverLookup records which tier answered a resolver operation.
func (m *Metrics) ResolverLookup(op, source string) {
	if m == nil {
		return
	}
	m.resolverLookups.WithLabelValues(op, source).Inc()
}

// ProviderRequest records the outcome of a provider call.
func (m *Metrics) ProviderRequest(provider, op, status string) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, op, status).Inc()
}

// CompletionAttempt records a single completion API attempt.
func (m *Metrics) CompletionAttempt(model, status string) {
	if m == nil {
		return
	}
	m.completionAttempts.WithLabelValues(model, status).Inc()
}

// CompletionFallback records a locally synthesized reply.
func (m *Metrics) CompletionFallback(kind string) {
	if m == nil {
		return
	}
	m.completionFallbacks.WithLabelValues(kind).Inc()
}

// AlertRaised records a new temperature alert.
func (m *Metrics) AlertRaised(city string) {
	if m == nil {
		return
	}
	m.alertsRaised.WithLabelValues(city).Inc()
}
