package discovery

import (
	"cmp"
	"context"
	"log/slog"
	"time"

	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/metrics"
	"github.com/kithua/acw/internal/source"
)

// Outcome is the promotion decision for one validated source.
type Outcome string

const (
	OutcomeAdded          Outcome = "added"
	OutcomeUpgraded       Outcome = "upgraded"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeInterrupted    Outcome = "interrupted"
)

const (
	defaultLanguage  = "en"
	defaultCrimeType = "general"
)

// Promotion records what happened to one candidate.
type Promotion struct {
	URL     string      `json:"url"`
	Domain  string      `json:"domain"`
	Outcome Outcome     `json:"outcome"`
	Score   float64     `json:"score"`
	Tier    source.Tier `json:"tier,omitempty"`
	Method  string      `json:"discovery_method,omitempty"`
}

// Promoter scores validated sources and merges the credible ones into the
// whitelist. It does not save the whitelist.
type Promoter struct {
	scorer    *credibility.Scorer
	whitelist *source.Whitelist
	threshold float64
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewPromoter(scorer *credibility.Scorer, wl *source.Whitelist, threshold float64, m *metrics.Metrics) *Promoter {
	return &Promoter{
		scorer:    scorer,
		whitelist: wl,
		threshold: threshold,
		metrics:   m,
		now:       time.Now,
	}
}

// Promote scores src against its validation result. Only sources scoring at
// or above the threshold are written; the tier given to a new entry is the
// computed tier, capped by the declared tier when the candidate carries one.
func (p *Promoter) Promote(ctx context.Context, src source.Descriptor, vr ValidationResult) Promotion {
	pr := Promotion{URL: src.URL, Domain: vr.Domain, Method: src.DiscoveryMethod}
	defer func() { p.metrics.SourcePromotion(string(pr.Outcome)) }()

	if !vr.IsValid {
		pr.Outcome = OutcomeInvalid
		return pr
	}

	res := p.scorer.Score(ctx, credibility.SourceSubject(src, vr.ContentSample))
	if res == nil {
		pr.Outcome = OutcomeInterrupted
		return pr
	}
	pr.Score = res.OverallScore
	pr.Tier = res.Tier
	if src.DeclaredTier.Valid() && res.Tier.Better(src.DeclaredTier) {
		pr.Tier = src.DeclaredTier
	}

	if res.OverallScore < p.threshold {
		pr.Outcome = OutcomeBelowThreshold
		return pr
	}

	if p.whitelist.Contains(src.URL) {
		pr.Outcome = OutcomeAlreadyPresent
		if p.whitelist.UpgradeTier(src.URL, pr.Tier, res.OverallScore) {
			pr.Outcome = OutcomeUpgraded
			slog.Info("Upgraded whitelist tier", "url", src.URL, "tier", pr.Tier, "score", res.OverallScore)
		}
		return pr
	}

	score := res.OverallScore
	discovered := p.now().UTC()
	entry := source.Entry{
		URL:              src.URL,
		Language:         cmp.Or(src.Language, vr.Language, defaultLanguage),
		Tier:             pr.Tier,
		CrimeType:        cmp.Or(src.CrimeTypeHint, defaultCrimeType),
		CredibilityScore: &score,
		AutoAdded:        true,
		DiscoveryDate:    &discovered,
	}
	if !p.whitelist.Add(entry) {
		pr.Outcome = OutcomeAlreadyPresent
		return pr
	}

	pr.Outcome = OutcomeAdded
	slog.Info("Added source to whitelist", "url", src.URL, "tier", pr.Tier, "score", score)
	return pr
}
