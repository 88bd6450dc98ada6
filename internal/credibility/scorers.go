package credibility

import (
	"sort"
	"strings"
	"time"

	"github.com/kithua/acw/internal/fetch"
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
	"github.com/kithua/acw/internal/textnorm"
)

// Component names as recorded in Result.ComponentScores.
const (
	ComponentReputation = "domain_reputation"
	ComponentFreshness  = "freshness"
	ComponentContent    = "content_quality"
	ComponentGeography  = "geographic_alignment"
	ComponentTechnical  = "technical_trust"
	ComponentHistorical = "historical_performance"
)

// Neutral is the score a component reports when its input is missing.
const Neutral = 0.5

const day = 24 * time.Hour

// Freshness scores the age of a publication date relative to now. Dates in
// the future count as zero days old.
func Freshness(published *time.Time, now time.Time) float64 {
	if published == nil || published.IsZero() {
		return Neutral
	}

	age := now.Sub(*published)
	if age < 0 {
		age = 0
	}
	days := int(age / day)

	switch {
	case days <= 1:
		return 1.0
	case days <= 7:
		return 0.8
	case days <= 30:
		return 0.6
	default:
		return 0.3
	}
}

// ContentQuality scores a title by length and crime vocabulary.
func ContentQuality(title string, keywords []string) float64 {
	words := strings.Fields(title)
	if len(words) == 0 {
		return Neutral
	}

	switch {
	case len(words) < 3:
		return 0.2
	case len(words) > 10:
		return 0.8
	}

	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return 0.7
		}
	}
	return Neutral
}

// Geography scores how strongly a domain and its text relate to Africa.
type Geography struct {
	indicators []string
	countries  []string
}

func NewGeography(r *rules.Rules) *Geography {
	indicators := make([]string, 0, len(r.Geography.DomainIndicators)+len(r.Geography.Countries))
	indicators = append(indicators, r.Geography.DomainIndicators...)
	for _, c := range r.Geography.Countries {
		indicators = append(indicators, strings.ReplaceAll(c, " ", ""))
	}
	return &Geography{indicators: indicators, countries: r.Geography.Countries}
}

// DomainNamesAfrica reports whether domain contains an African region or
// country indicator.
func (g *Geography) DomainNamesAfrica(domain string) bool {
	host := source.NormalizeHost(domain)
	for _, ind := range g.indicators {
		if strings.Contains(host, ind) {
			return true
		}
	}
	return false
}

// Score returns 1.0 for an African domain, otherwise grades the number of
// distinct countries named in the sample.
func (g *Geography) Score(domain string, sample *source.Sample) float64 {
	if g.DomainNamesAfrica(domain) {
		return 1.0
	}
	if sample == nil {
		return Neutral
	}

	switch n := len(g.Countries(sample.Text())); {
	case n >= 3:
		return 0.9
	case n >= 1:
		return 0.7
	default:
		return 0.4
	}
}

// Countries returns the distinct countries mentioned in text, ordered by
// first mention.
func (g *Geography) Countries(text string) []string {
	if text == "" {
		return nil
	}
	folded := textnorm.StripMarks(textnorm.Fold(text))

	type mention struct {
		country string
		at      int
	}
	var found []mention
	for _, c := range g.countries {
		if i := strings.Index(folded, c); i >= 0 {
			found = append(found, mention{country: c, at: i})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].at < found[j].at })

	out := make([]string, len(found))
	for i, m := range found {
		out[i] = m.country
	}
	return out
}

// TechnicalTrust maps a probe outcome to a score.
func TechnicalTrust(reach fetch.Reach) float64 {
	switch reach {
	case fetch.ReachableHTTPS:
		return 0.8
	case fetch.ReachableHTTP:
		return 0.6
	default:
		return 0.2
	}
}
