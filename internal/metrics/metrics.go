// Package metrics exports Prometheus counters for token, cost, and
// generation accounting, with the Registry injectable for test isolation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter records per-generation token usage, cost, latency, and the
// provider selector's live eligibility failures, in a registry the caller
// injects (or a fresh one if nil) so tests don't collide on the default
// global registry.
type Exporter struct {
	registry *prometheus.Registry

	tokensUsed    *prometheus.CounterVec
	costMilliCent *prometheus.CounterVec
	generations   *prometheus.CounterVec
	genLatency    *prometheus.HistogramVec
	notEligible   *prometheus.CounterVec
	busyRejects   *prometheus.CounterVec
	roomsActive   prometheus.Gauge
}

// Config configures the Exporter. A nil Registry builds a fresh one.
type Config struct {
	Registry       *prometheus.Registry
	LatencyBuckets []float64
}

// DefaultConfig returns the default latency histogram buckets, spanning
// sub-100ms cache hits out to multi-minute streamed generations.
func DefaultConfig() Config {
	return Config{LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}}
}

// New builds an Exporter, registering every metric against cfg.Registry.
func New(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.tokensUsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loomchat",
		Subsystem: "inference",
		Name:      "tokens_total",
		Help:      "Total tokens consumed by generation, by profile/model/kind.",
	}, []string{"profile", "model", "token_kind"})

	e.costMilliCent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loomchat",
		Subsystem: "inference",
		Name:      "cost_milli_cents_total",
		Help:      "Total cost charged for generations, in milli-cents, by profile/currency.",
	}, []string{"profile", "currency"})

	e.generations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loomchat",
		Subsystem: "inference",
		Name:      "generations_total",
		Help:      "Total generation turns, by profile/model/outcome.",
	}, []string{"profile", "model", "outcome"})

	e.genLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loomchat",
		Subsystem: "inference",
		Name:      "generation_latency_seconds",
		Help:      "Generation turn latency in seconds.",
		Buckets:   cfg.LatencyBuckets,
	}, []string{"profile", "model"})

	e.notEligible = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loomchat",
		Subsystem: "provider",
		Name:      "not_eligible_total",
		Help:      "Selector requests that found no eligible profile, by provider type.",
	}, []string{"provider_type"})

	e.busyRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loomchat",
		Subsystem: "room",
		Name:      "generation_busy_rejects_total",
		Help:      "startGeneration calls rejected because a room already had one in flight.",
	}, []string{"conversation_id"})

	e.roomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loomchat",
		Subsystem: "room",
		Name:      "active_rooms",
		Help:      "Number of rooms with at least one live connection.",
	})

	registry.MustRegister(e.tokensUsed, e.costMilliCent, e.generations, e.genLatency, e.notEligible, e.busyRejects, e.roomsActive)
	return e
}

// RecordGeneration records one completed or failed generation turn's
// token usage, cost, latency and outcome.
func (e *Exporter) RecordGeneration(profileID, model string, promptTokens, completionTokens int, costMilliCents int64, currency string, latency time.Duration, failed bool) {
	e.tokensUsed.WithLabelValues(profileID, model, "prompt").Add(float64(promptTokens))
	e.tokensUsed.WithLabelValues(profileID, model, "completion").Add(float64(completionTokens))
	if currency != "" {
		e.costMilliCent.WithLabelValues(profileID, currency).Add(float64(costMilliCents))
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	e.generations.WithLabelValues(profileID, model, outcome).Inc()
	e.genLatency.WithLabelValues(profileID, model).Observe(latency.Seconds())
}

// RecordNotEligible records a provider selector miss.
func (e *Exporter) RecordNotEligible(providerType string) {
	e.notEligible.WithLabelValues(providerType).Inc()
}

// RecordBusyReject records a room rejecting a generation start because
// one was already in flight.
func (e *Exporter) RecordBusyReject(conversationID string) {
	e.busyRejects.WithLabelValues(conversationID).Inc()
}

// SetActiveRooms updates the active-room gauge.
func (e *Exporter) SetActiveRooms(n int) {
	e.roomsActive.Set(float64(n))
}

// Handler serves the registry in the Prometheus text exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests asserting on
// gathered metric families.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
