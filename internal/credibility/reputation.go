// Package credibility scores sources and items into a weighted credibility
// result with a tier and risk flags, caching one result per domain.
package credibility

import (
	"strings"

	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

const (
	reputationHigh       = 1.0
	reputationGov        = 0.95
	reputationMedium     = 0.75
	reputationSuspicious = 0.1
	reputationDefault    = 0.5
)

// Reputation maps a domain to a prior trust score from the curation rules.
// It is a pure function of the rules and safe for concurrent use.
type Reputation struct {
	high       map[string]struct{}
	medium     map[string]struct{}
	gov        []string
	suspicious []string
}

func NewReputation(r *rules.Rules) *Reputation {
	return &Reputation{
		high:       toSet(r.Reputation.HighTrust),
		medium:     toSet(r.Reputation.MediumTrust),
		gov:        r.Reputation.GovSuffixes,
		suspicious: r.Reputation.SuspiciousKeywords,
	}
}

// Score applies, in order: high-trust root, government suffix, medium-trust
// root, suspicious keyword, default.
func (rep *Reputation) Score(domain string) float64 {
	host := source.NormalizeHost(domain)
	root := source.RootDomain(host)

	if _, ok := rep.high[root]; ok {
		return reputationHigh
	}
	for _, suffix := range rep.gov {
		if strings.Contains(host, suffix) {
			return reputationGov
		}
	}
	if _, ok := rep.medium[root]; ok {
		return reputationMedium
	}
	if _, ok := rep.SuspiciousKeyword(host); ok {
		return reputationSuspicious
	}
	return reputationDefault
}

// SuspiciousKeyword returns the first suspicious keyword found in domain.
func (rep *Reputation) SuspiciousKeyword(domain string) (string, bool) {
	host := source.NormalizeHost(domain)
	for _, kw := range rep.suspicious {
		if strings.Contains(host, kw) {
			return kw, true
		}
	}
	return "", false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[source.NormalizeHost(item)] = struct{}{}
	}
	return set
}
