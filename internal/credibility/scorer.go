package credibility

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/kithua/acw/internal/fetch"
	"github.com/kithua/acw/internal/metrics"
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

// Subject is anything the aggregate scorer can rate: a source or an item.
type Subject struct {
	URL    string
	Domain string
	Sample *source.Sample
}

// ItemSubject scores an item through its domain and its own content.
func ItemSubject(it source.Item) Subject {
	return Subject{URL: it.Link, Domain: it.Domain(), Sample: it.Sample()}
}

// SourceSubject scores a source with an optional content sample.
func SourceSubject(d source.Descriptor, sample *source.Sample) Subject {
	domain := d.Domain
	if domain == "" {
		domain = source.Host(d.URL)
	}
	return Subject{URL: d.URL, Domain: source.NormalizeHost(domain), Sample: sample}
}

// Result is the credibility verdict for one domain.
type Result struct {
	Domain          string             `json:"domain"`
	OverallScore    float64            `json:"overall_score"`
	ComponentScores map[string]float64 `json:"component_scores"`
	Tier            source.Tier        `json:"tier"`
	RiskFactors     []string           `json:"risk_factors"`
	ScoredAt        time.Time          `json:"scored_at"`
}

// Prober checks whether a domain answers over HTTPS or HTTP.
type Prober interface {
	Probe(ctx context.Context, domain string) fetch.Reach
}

// Scorer combines the six component scores into a weighted result, one per
// domain per run.
type Scorer struct {
	rules      *rules.Rules
	reputation *Reputation
	geography  *Geography
	prober     Prober
	cache      *Cache
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Scorer)

// WithClock replaces time.Now for freshness scoring.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// NewScorer builds a scorer. A nil prober reports every domain with the
// neutral technical score; a nil cache gets a fresh in-memory cache.
func NewScorer(r *rules.Rules, prober Prober, cache *Cache, opts ...Option) *Scorer {
	if cache == nil {
		cache = NewCache(nil, 0)
	}
	s := &Scorer{
		rules:      r,
		reputation: NewReputation(r),
		geography:  NewGeography(r),
		prober:     prober,
		cache:      cache,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scorer) Reputation() *Reputation {
	return s.reputation
}

func (s *Scorer) Geography() *Geography {
	return s.geography
}

func (s *Scorer) Cache() *Cache {
	return s.cache
}

// Score returns the cached result for the subject's domain, computing it on
// the first request. Concurrent first requests share one computation.
// Score returns nil when ctx ends before the computation completes; such a
// partial result is neither cached nor persisted.
func (s *Scorer) Score(ctx context.Context, subj Subject) *Result {
	domain := source.NormalizeHost(subj.Domain)
	if domain == "" {
		domain = source.Host(subj.URL)
	}

	result, hit := s.cache.GetOrCompute(domain, func() *Result {
		return s.compute(ctx, subj, domain)
	})
	s.metrics.CacheLookup(hit)
	return result
}

func (s *Scorer) compute(ctx context.Context, subj Subject, domain string) *Result {
	var title string
	var published *time.Time
	if subj.Sample != nil {
		title = subj.Sample.Title
		published = subj.Sample.PublishedAt
	}

	historical := Neutral
	if last, ok := s.cache.LastScore(domain); ok {
		historical = clamp(last)
	}

	components := map[string]float64{
		ComponentReputation: s.reputation.Score(domain),
		ComponentFreshness:  Freshness(published, s.now()),
		ComponentContent:    ContentQuality(title, s.rules.Content.TitleKeywords),
		ComponentGeography:  s.geography.Score(domain, subj.Sample),
		ComponentTechnical:  s.technical(ctx, domain),
		ComponentHistorical: historical,
	}

	if err := ctx.Err(); err != nil {
		slog.Debug("Domain scoring interrupted", "domain", domain, "error", err)
		return nil
	}

	overall := s.weighted(components)
	result := &Result{
		Domain:          domain,
		OverallScore:    overall,
		ComponentScores: components,
		Tier:            TierFromScore(overall),
		RiskFactors:     s.riskFactors(subj, domain),
		ScoredAt:        s.now().UTC(),
	}

	slog.Debug("Domain scored", "domain", domain, "score", result.OverallScore, "tier", result.Tier, "risks", result.RiskFactors)
	return result
}

func (s *Scorer) technical(ctx context.Context, domain string) float64 {
	if s.prober == nil {
		return Neutral
	}
	start := time.Now()
	reach := s.prober.Probe(ctx, domain)
	s.metrics.ObserveProbe(reach.String(), time.Since(start))
	return TechnicalTrust(reach)
}

// weighted sums the components and rounds away float noise so that scores
// meant to sit on a tier boundary land on it.
func (s *Scorer) weighted(c map[string]float64) float64 {
	w := s.rules.Weights
	sum := c[ComponentReputation]*w.Reputation +
		c[ComponentFreshness]*w.Freshness +
		c[ComponentContent]*w.Content +
		c[ComponentGeography]*w.Geography +
		c[ComponentTechnical]*w.Technical +
		c[ComponentHistorical]*w.Historical
	return clamp(math.Round(sum*1e9) / 1e9)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
