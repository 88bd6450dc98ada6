// Package rules holds the immutable curation configuration shared by every
// scoring, classification and discovery component.
package rules

import "github.com/kithua/acw/internal/source"

type Rules struct {
	Reputation ReputationRules            `yaml:"reputation"`
	Weights    Weights                    `yaml:"weights"`
	Geography  GeographyRules             `yaml:"geography"`
	Content    ContentRules               `yaml:"content"`
	Pillars    map[source.Pillar][]string `yaml:"pillars"`
	Dedup      DedupRules                 `yaml:"dedup"`
	Curation   CurationRules              `yaml:"curation"`
	Discovery  DiscoveryRules             `yaml:"discovery"`
	Search     map[source.Pillar][]string `yaml:"search_patterns"`
}

type ReputationRules struct {
	HighTrust          []string `yaml:"high_trust"`
	MediumTrust        []string `yaml:"medium_trust"`
	GovSuffixes        []string `yaml:"gov_suffixes"`
	SuspiciousKeywords []string `yaml:"suspicious_keywords"`
}

// Weights of the six credibility components. They must sum to 1.0.
type Weights struct {
	Reputation float64 `yaml:"domain_reputation"`
	Freshness  float64 `yaml:"freshness"`
	Content    float64 `yaml:"content_quality"`
	Geography  float64 `yaml:"geographic_alignment"`
	Technical  float64 `yaml:"technical_trust"`
	Historical float64 `yaml:"historical_performance"`
}

func (w Weights) Sum() float64 {
	return w.Reputation + w.Freshness + w.Content + w.Geography + w.Technical + w.Historical
}

func (w Weights) isZero() bool {
	return w == Weights{}
}

type GeographyRules struct {
	DomainIndicators []string `yaml:"domain_indicators"`
	Countries        []string `yaml:"countries"`
}

type ContentRules struct {
	TitleKeywords     []string `yaml:"title_keywords"`
	ShortContentChars int      `yaml:"short_content_chars"`
	MaxSubdomainParts int      `yaml:"max_domain_labels"`
}

type DedupRules struct {
	TitleSimilarity float64  `yaml:"title_similarity"`
	StopWords       []string `yaml:"stop_words"`
	TrackingParams  []string `yaml:"tracking_params"`
}

type CurationRules struct {
	// Items whose domain reputation is at or below this value are rejected
	// as suspicious before scoring.
	RejectReputation float64     `yaml:"reject_reputation"`
	MinTier          source.Tier `yaml:"min_tier"`
}

type DiscoveryRules struct {
	PromoteScore     float64     `yaml:"promote_score"`
	RecentDays       int         `yaml:"recent_days"`
	RecentEntries    int         `yaml:"recent_entries"`
	SampleChars      int         `yaml:"sample_chars"`
	NewsDomains      []string    `yaml:"news_domains"`
	FeedPaths        []string    `yaml:"feed_paths"`
	MonitorSites     []string    `yaml:"monitor_sites"`
	MonitorFeedPaths []string    `yaml:"monitor_feed_paths"`
	MonitorTier      source.Tier `yaml:"monitor_tier"`
	AgencyPrefixes   []string    `yaml:"agency_prefixes"`
	GovDomains       []string    `yaml:"gov_domains"`
	GovSites         []string    `yaml:"gov_sites"`
}
