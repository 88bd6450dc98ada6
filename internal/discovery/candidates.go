package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

// Discovery methods recorded on candidates.
const (
	MethodSearch      = "search"
	MethodFeedSearch  = "search_rss"
	MethodEnumeration = "domain_enumeration"
	MethodMonitor     = "monitor_index"
	MethodAgency      = "gov_agency"
	MethodFeedLink    = "gov_feed_link"
)

// searchCandidates runs every search pattern twice: once as written and once
// narrowed to feeds, keeping only links that look like feeds.
func searchCandidates(ctx context.Context, s Searcher, r *rules.Rules) []source.Descriptor {
	if s == nil {
		return nil
	}

	var out []source.Descriptor
	for _, pillar := range source.Pillars {
		for _, pattern := range r.Search[pillar] {
			if ctx.Err() != nil {
				return out
			}
			slog.Debug("Searching", "pillar", pillar, "query", pattern)

			results, err := s.Search(ctx, pattern)
			if err != nil {
				slog.Warn("Search failed", "query", pattern, "error", err)
				continue
			}
			for _, res := range results {
				out = append(out, searchDescriptor(res, source.TypeNews, MethodSearch, pillar))
			}

			results, err = s.Search(ctx, pattern+" RSS feed")
			if err != nil {
				slog.Warn("Search failed", "query", pattern+" RSS feed", "error", err)
				continue
			}
			for _, res := range results {
				link := strings.ToLower(res.Link)
				if !strings.Contains(link, "rss") && !strings.Contains(link, "feed") {
					continue
				}
				out = append(out, searchDescriptor(res, source.TypeFeed, MethodFeedSearch, pillar))
			}
		}
	}
	return out
}

func searchDescriptor(res SearchResult, sourceType, method string, pillar source.Pillar) source.Descriptor {
	d := source.NewDescriptor(res.Link, sourceType, method)
	d.Title = res.Title
	d.Description = res.Snippet
	d.CrimeTypeHint = string(pillar)
	return d
}

// enumerationCandidates guesses feed URLs on trusted news domains.
func enumerationCandidates(d rules.DiscoveryRules) []source.Descriptor {
	var out []source.Descriptor
	for _, domain := range d.NewsDomains {
		for _, path := range d.FeedPaths {
			c := source.NewDescriptor("https://"+domain+path, source.TypeFeed, MethodEnumeration)
			c.Title = "RSS Feed - " + domain
			out = append(out, c)
		}
	}
	return out
}

// monitorCandidates guesses feed URLs on security research sites. They are
// indirect sources and never rank above the configured monitor tier.
func monitorCandidates(d rules.DiscoveryRules) []source.Descriptor {
	var out []source.Descriptor
	for _, site := range d.MonitorSites {
		for _, path := range d.MonitorFeedPaths {
			c := source.NewDescriptor("https://"+site+path, source.TypeMonitor, MethodMonitor)
			c.Title = "Security Monitor - " + site
			c.DeclaredTier = d.MonitorTier
			out = append(out, c)
		}
	}
	return out
}

// agencyCandidates lists government agency homepages. They are validated as
// HTML pages so their advertised feeds can be collected.
func agencyCandidates(d rules.DiscoveryRules) []source.Descriptor {
	var out []source.Descriptor
	for _, gov := range d.GovDomains {
		for _, prefix := range d.AgencyPrefixes {
			out = append(out, agencyDescriptor(prefix+"."+gov))
		}
	}
	for _, site := range d.GovSites {
		out = append(out, agencyDescriptor(site))
	}
	return out
}

func agencyDescriptor(host string) source.Descriptor {
	c := source.NewDescriptor("https://"+host, source.TypeGovSite, MethodAgency)
	c.Title = "Government agency - " + host
	return c
}

// feedLinkCandidates turns the feed links found on agency homepages into
// feed candidates.
func feedLinkCandidates(results []ValidationResult) []source.Descriptor {
	var out []source.Descriptor
	for _, vr := range results {
		if !vr.IsValid {
			continue
		}
		for _, link := range vr.FeedLinks {
			c := source.NewDescriptor(link, source.TypeGovFeed, MethodFeedLink)
			c.Title = fmt.Sprintf("RSS Feed - %s", vr.Domain)
			out = append(out, c)
		}
	}
	return out
}
