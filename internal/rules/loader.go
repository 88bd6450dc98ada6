package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kithua/acw/internal/source"
	"github.com/kithua/acw/internal/textnorm"
)

const weightTolerance = 1e-9

// Load reads a rules file and overlays it on the built-in defaults. An empty
// path or a missing file yields the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Rules file not found, using built-in rules", "path", path)
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", path, err)
	}

	slog.Debug("Rules loaded", "path", path, "high_trust", len(r.Reputation.HighTrust), "countries", len(r.Geography.Countries))
	return r, nil
}

// Parse decodes YAML rules, fills every omitted section from the defaults and
// validates the result.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&r)
	normalize(&r)

	if err := Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func setDefaults(r *Rules) {
	d := Defaults()

	fillStrings(&r.Reputation.HighTrust, d.Reputation.HighTrust)
	fillStrings(&r.Reputation.MediumTrust, d.Reputation.MediumTrust)
	fillStrings(&r.Reputation.GovSuffixes, d.Reputation.GovSuffixes)
	fillStrings(&r.Reputation.SuspiciousKeywords, d.Reputation.SuspiciousKeywords)

	if r.Weights.isZero() {
		r.Weights = d.Weights
	}

	fillStrings(&r.Geography.DomainIndicators, d.Geography.DomainIndicators)
	fillStrings(&r.Geography.Countries, d.Geography.Countries)

	fillStrings(&r.Content.TitleKeywords, d.Content.TitleKeywords)
	if r.Content.ShortContentChars == 0 {
		r.Content.ShortContentChars = d.Content.ShortContentChars
	}
	if r.Content.MaxSubdomainParts == 0 {
		r.Content.MaxSubdomainParts = d.Content.MaxSubdomainParts
	}

	if len(r.Pillars) == 0 {
		r.Pillars = d.Pillars
	}
	if len(r.Search) == 0 {
		r.Search = d.Search
	}

	if r.Dedup.TitleSimilarity == 0 {
		r.Dedup.TitleSimilarity = d.Dedup.TitleSimilarity
	}
	fillStrings(&r.Dedup.StopWords, d.Dedup.StopWords)
	fillStrings(&r.Dedup.TrackingParams, d.Dedup.TrackingParams)

	if r.Curation.RejectReputation == 0 {
		r.Curation.RejectReputation = d.Curation.RejectReputation
	}
	if r.Curation.MinTier == "" {
		r.Curation.MinTier = d.Curation.MinTier
	}

	dd := d.Discovery
	if r.Discovery.PromoteScore == 0 {
		r.Discovery.PromoteScore = dd.PromoteScore
	}
	if r.Discovery.RecentDays == 0 {
		r.Discovery.RecentDays = dd.RecentDays
	}
	if r.Discovery.RecentEntries == 0 {
		r.Discovery.RecentEntries = dd.RecentEntries
	}
	if r.Discovery.SampleChars == 0 {
		r.Discovery.SampleChars = dd.SampleChars
	}
	if r.Discovery.MonitorTier == "" {
		r.Discovery.MonitorTier = dd.MonitorTier
	}
	fillStrings(&r.Discovery.NewsDomains, dd.NewsDomains)
	fillStrings(&r.Discovery.FeedPaths, dd.FeedPaths)
	fillStrings(&r.Discovery.MonitorSites, dd.MonitorSites)
	fillStrings(&r.Discovery.MonitorFeedPaths, dd.MonitorFeedPaths)
	fillStrings(&r.Discovery.AgencyPrefixes, dd.AgencyPrefixes)
	fillStrings(&r.Discovery.GovDomains, dd.GovDomains)
	fillStrings(&r.Discovery.GovSites, dd.GovSites)
}

func fillStrings(dst *[]string, def []string) {
	if len(*dst) == 0 {
		*dst = def
	}
}

// normalize lowercases list entries so lookups can compare directly.
func normalize(r *Rules) {
	lists := []*[]string{
		&r.Reputation.HighTrust,
		&r.Reputation.MediumTrust,
		&r.Reputation.GovSuffixes,
		&r.Reputation.SuspiciousKeywords,
		&r.Geography.DomainIndicators,
		&r.Geography.Countries,
		&r.Content.TitleKeywords,
		&r.Dedup.StopWords,
		&r.Dedup.TrackingParams,
	}
	for _, list := range lists {
		*list = lowerAll(*list)
	}
	for p, words := range r.Pillars {
		r.Pillars[p] = lowerAll(words)
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the invariants every component relies on.
func Validate(r *Rules) error {
	if r == nil {
		return fmt.Errorf("rules are nil")
	}

	weights := map[string]float64{
		"domain_reputation":      r.Weights.Reputation,
		"freshness":              r.Weights.Freshness,
		"content_quality":        r.Weights.Content,
		"geographic_alignment":   r.Weights.Geography,
		"technical_trust":        r.Weights.Technical,
		"historical_performance": r.Weights.Historical,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("weight %s must be within [0, 1], got %v", name, w)
		}
	}
	if sum := r.Weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}

	if err := validatePillars(r.Pillars); err != nil {
		return err
	}
	for p := range r.Search {
		if !p.Valid() {
			return fmt.Errorf("unknown pillar %q in search patterns", p)
		}
	}

	unitFields := map[string]float64{
		"dedup title_similarity":     r.Dedup.TitleSimilarity,
		"curation reject_reputation": r.Curation.RejectReputation,
		"discovery promote_score":    r.Discovery.PromoteScore,
	}
	for name, v := range unitFields {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	if r.Curation.RejectReputation >= r.Discovery.PromoteScore {
		return fmt.Errorf("curation reject_reputation (%v) must be below discovery promote_score (%v)",
			r.Curation.RejectReputation, r.Discovery.PromoteScore)
	}

	nonNegative := map[string]int{
		"content short_content_chars": r.Content.ShortContentChars,
		"content max_domain_labels":   r.Content.MaxSubdomainParts,
		"discovery recent_days":       r.Discovery.RecentDays,
		"discovery recent_entries":    r.Discovery.RecentEntries,
		"discovery sample_chars":      r.Discovery.SampleChars,
	}
	for name, v := range nonNegative {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}

	tiers := map[string]source.Tier{
		"curation min_tier":      r.Curation.MinTier,
		"discovery monitor_tier": r.Discovery.MonitorTier,
	}
	for name, t := range tiers {
		if !t.Valid() {
			return fmt.Errorf("%s: unknown tier %q", name, t)
		}
	}

	return nil
}

// validatePillars requires all four pillars with non-empty, single-token,
// pairwise disjoint keyword sets.
func validatePillars(pillars map[source.Pillar][]string) error {
	owner := make(map[string]source.Pillar)

	for _, p := range source.Pillars {
		words, ok := pillars[p]
		if !ok || len(words) == 0 {
			return fmt.Errorf("pillar %s has no keywords", p)
		}
		for _, w := range words {
			tokens := textnorm.Tokens(w)
			if len(tokens) != 1 || tokens[0] != w {
				return fmt.Errorf("pillar %s keyword %q must be a single token", p, w)
			}
			if other, dup := owner[w]; dup && other != p {
				return fmt.Errorf("keyword %q is shared by pillars %s and %s", w, other, p)
			}
			owner[w] = p
		}
	}

	for p := range pillars {
		if !p.Valid() {
			return fmt.Errorf("unknown pillar %q", p)
		}
	}
	return nil
}
