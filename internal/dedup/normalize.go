package dedup

import (
	"net/url"
	"sort"
	"strings"

	"github.com/kithua/acw/internal/textnorm"
)

// NormalizeLink reduces a link to the form two copies of the same article
// share: lowercased host without "www.", no fragment, no tracking
// parameters, no trailing slash. Unparseable links are only trimmed.
func NormalizeLink(link string, tracking map[string]struct{}) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(link), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	q := u.Query()
	for key := range q {
		k := strings.ToLower(key)
		if strings.HasPrefix(k, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := tracking[k]; ok {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// titleWords returns the sorted distinct words of a title after folding,
// diacritic stripping and stop-word removal.
func titleWords(title string, stop map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, w := range textnorm.Words(title) {
		if _, skip := stop[w]; skip {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// jaccard computes |a ∩ b| / |a ∪ b| over sorted distinct word lists.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, inter := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
