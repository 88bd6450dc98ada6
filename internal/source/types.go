package source

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a credibility band, A being the most trusted.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Tiers lists every tier from best to worst.
var Tiers = []Tier{TierA, TierB, TierC, TierD}

// Rank orders tiers; unknown tiers rank below D.
func (t Tier) Rank() int {
	switch t {
	case TierA:
		return 4
	case TierB:
		return 3
	case TierC:
		return 2
	case TierD:
		return 1
	default:
		return 0
	}
}

// Better reports whether t is strictly more trusted than other.
func (t Tier) Better(other Tier) bool {
	return t.Rank() > other.Rank()
}

func (t Tier) Valid() bool {
	return t.Rank() > 0
}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Pillar is one of the four crime categories of the digest.
type Pillar string

const (
	PillarTerrorism Pillar = "terrorism"
	PillarOrganised Pillar = "organised"
	PillarFinancial Pillar = "financial"
	PillarCyber     Pillar = "cyber"
)

// Pillars lists the pillars in report order.
var Pillars = []Pillar{PillarTerrorism, PillarOrganised, PillarFinancial, PillarCyber}

func (p Pillar) Valid() bool {
	for _, known := range Pillars {
		if p == known {
			return true
		}
	}
	return false
}

// Source types recorded on discovered sources.
const (
	TypeFeed    = "rss_feed"
	TypeGovFeed = "gov_rss"
	TypeMonitor = "darkweb_monitor"
	TypeNews    = "news"
	TypeGovSite = "gov_site"
)

// Descriptor identifies a content source. Only DeclaredTier may change after
// construction, and only upwards.
type Descriptor struct {
	URL             string `json:"url"`
	Domain          string `json:"domain"`
	Language        string `json:"lang,omitempty"`
	DeclaredTier    Tier   `json:"tier,omitempty"`
	CrimeTypeHint   string `json:"crime_type,omitempty"`
	SourceType      string `json:"source_type,omitempty"`
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	DiscoveryMethod string `json:"discovery_method,omitempty"`
}

// NewDescriptor builds a descriptor for rawURL with the domain derived from it.
func NewDescriptor(rawURL, sourceType, method string) Descriptor {
	return Descriptor{
		URL:             strings.TrimSpace(rawURL),
		Domain:          Host(rawURL),
		SourceType:      sourceType,
		DiscoveryMethod: method,
	}
}

// IsFeed reports whether the descriptor claims to point at an RSS or Atom feed.
func (d Descriptor) IsFeed() bool {
	switch d.SourceType {
	case TypeFeed, TypeGovFeed, TypeMonitor:
		return true
	case "":
		lower := strings.ToLower(d.URL)
		return strings.Contains(lower, "rss") || strings.Contains(lower, "feed") || strings.HasSuffix(lower, ".xml")
	default:
		return false
	}
}

// Sample is the small slice of content a source or item offers for scoring.
type Sample struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Text joins title and summary the way the content scorers read them.
func (s *Sample) Text() string {
	if s == nil {
		return ""
	}
	if s.Summary == "" {
		return s.Title
	}
	return s.Title + " " + s.Summary
}

// Item is a normalized article record flowing through the curation pipeline.
type Item struct {
	Title        string     `json:"title"`
	Summary      string     `json:"summary,omitempty"`
	Link         string     `json:"link"`
	PublishedAt  *time.Time `json:"publication_date,omitempty"`
	SourceDomain string     `json:"source_domain,omitempty"`
	Language     string     `json:"language,omitempty"`
	Tier         Tier       `json:"tier,omitempty"`
	Pillar       Pillar     `json:"crime_pillar,omitempty"`
	Confidence   float64    `json:"confidence"`
	Geo          string     `json:"geo,omitempty"`
}

// Domain returns the item's source domain, falling back to the link host.
func (it Item) Domain() string {
	if d := NormalizeHost(it.SourceDomain); d != "" {
		return d
	}
	return Host(it.Link)
}

// Sample exposes the scoring inputs carried by the item.
func (it Item) Sample() *Sample {
	return &Sample{Title: it.Title, Summary: it.Summary, PublishedAt: it.PublishedAt}
}
