// Package metrics exposes pipeline counters to Prometheus. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "acw"

type Metrics struct {
	itemsRejected       *prometheus.CounterVec
	itemsCurated        *prometheus.CounterVec
	duplicatesCollapsed prometheus.Counter
	cacheLookups        *prometheus.CounterVec
	sourcesValidated    *prometheus.CounterVec
	sourcesPromoted     *prometheus.CounterVec
	probeDuration       *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		itemsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_rejected_total",
			Help:      "Items dropped before reaching the corpus, by reason.",
		}, []string{"reason"}),
		itemsCurated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_curated_total",
			Help:      "Canonical items written to the corpus, by pillar.",
		}, []string{"pillar"}),
		duplicatesCollapsed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_collapsed_total",
			Help:      "Items folded into another item's duplicate cluster.",
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credibility_cache_lookups_total",
			Help:      "Credibility cache lookups, by result.",
		}, []string{"result"}),
		sourcesValidated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_validated_total",
			Help:      "Candidate sources validated, by outcome.",
		}, []string{"valid"}),
		sourcesPromoted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_promoted_total",
			Help:      "Whitelist promotion decisions, by outcome.",
		}, []string{"outcome"}),
		probeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Reachability probe latency, by result.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"result"}),
	}
}

func (m *Metrics) ItemRejected(reason string) {
	if m == nil {
		return
	}
	m.itemsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ItemCurated(pillar string) {
	if m == nil {
		return
	}
	m.itemsCurated.WithLabelValues(pillar).Inc()
}

func (m *Metrics) DuplicatesCollapsed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicatesCollapsed.Add(float64(n))
}

// CacheLookup records a credibility cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SourceValidated(valid bool) {
	if m == nil {
		return
	}
	label := "false"
	if valid {
		label = "true"
	}
	m.sourcesValidated.WithLabelValues(label).Inc()
}

func (m *Metrics) SourcePromotion(outcome string) {
	if m == nil {
		return
	}
	m.sourcesPromoted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveProbe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.probeDuration.WithLabelValues(result).Observe(d.Seconds())
}
