package credibility

import (
	"strings"
	"unicode/utf8"
)

const (
	RiskNoHTTPS            = "no_https"
	RiskSubdomainHeavy     = "subdomain_heavy"
	RiskVeryShortContent   = "very_short_content"
	RiskSuspiciousKeywordP = "suspicious_keyword:"
)

// riskFactors flags are derived independently of the numeric score.
func (s *Scorer) riskFactors(subj Subject, domain string) []string {
	risks := []string{}

	if subj.URL != "" && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(subj.URL)), "https://") {
		risks = append(risks, RiskNoHTTPS)
	}

	if len(strings.Split(domain, ".")) > s.rules.Content.MaxSubdomainParts {
		risks = append(risks, RiskSubdomainHeavy)
	}

	if subj.Sample != nil {
		text := subj.Sample.Title + subj.Sample.Summary
		if utf8.RuneCountInString(text) < s.rules.Content.ShortContentChars {
			risks = append(risks, RiskVeryShortContent)
		}
	}

	if kw, ok := s.reputation.SuspiciousKeyword(domain); ok {
		risks = append(risks, RiskSuspiciousKeywordP+kw)
	}

	return risks
}

// HasRisk reports whether r carries the named flag. Keyword flags match on
// their prefix.
func (r *Result) HasRisk(flag string) bool {
	for _, f := range r.RiskFactors {
		if f == flag || (strings.HasSuffix(flag, ":") && strings.HasPrefix(f, flag)) {
			return true
		}
	}
	return false
}
