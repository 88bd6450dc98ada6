package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kithua/acw/internal/blacklist"
	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/fetch"
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	codes map[string]int
	errs  map[string]error
	calls []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages: make(map[string]string),
		codes: make(map[string]int),
		errs:  make(map[string]error),
	}
}

func (f *stubFetcher) Get(_ context.Context, rawURL string, _ time.Duration) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)

	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if code, ok := f.codes[rawURL]; ok {
		return &fetch.Response{URL: rawURL, StatusCode: code}, nil
	}
	if body, ok := f.pages[rawURL]; ok {
		return &fetch.Response{URL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
	}
	return &fetch.Response{URL: rawURL, StatusCode: 404}, nil
}

type feedEntry struct {
	title   string
	summary string
	date    time.Time
}

func rssFeed(title string, entries ...feedEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	fmt.Fprintf(&b, "<title>%s</title><link>https://example.org</link><language>en</language>", title)
	for _, e := range entries {
		fmt.Fprintf(&b, "<item><title>%s</title><description>%s</description><pubDate>%s</pubDate></item>",
			e.title, e.summary, e.date.Format(time.RFC1123Z))
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func recentEntry() feedEntry {
	return feedEntry{
		title:   "Militants attack army base in Nigeria",
		summary: "Gunmen struck a military outpost in Borno state overnight.",
		date:    time.Now().Add(-2 * time.Hour),
	}
}

func newTestScorer() *credibility.Scorer {
	return credibility.NewScorer(rules.Defaults(), nil, nil)
}

func TestValidateFeed(t *testing.T) {
	f := newStubFetcher()
	long := strings.Repeat("é", 250)
	f.pages["https://news.example/rss"] = rssFeed("Example News",
		feedEntry{title: "Latest", summary: long, date: time.Now().Add(-48 * time.Hour)},
		feedEntry{title: "Older", summary: "old", date: time.Now().Add(-90 * 24 * time.Hour)},
	)

	v := NewValidator(f, rules.Defaults(), 0, nil)
	res := v.Validate(context.Background(), source.NewDescriptor("https://news.example/rss", source.TypeFeed, MethodEnumeration))

	require.True(t, res.IsValid, res.Error)
	assert.Equal(t, "news.example", res.Domain)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, 2, res.EntriesCount)
	assert.True(t, res.HasRecentContent)
	assert.Equal(t, "Example News", res.Title)
	require.NotNil(t, res.ContentSample)
	assert.Equal(t, "Latest", res.ContentSample.Title)
	assert.Equal(t, 200, len([]rune(res.ContentSample.Summary)))
	assert.NotNil(t, res.ContentSample.PublishedAt)
}

func TestValidateFeedWithoutRecentEntries(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://news.example/feed"] = rssFeed("Stale",
		feedEntry{title: "Old story", summary: "x", date: time.Now().Add(-45 * 24 * time.Hour)},
	)

	v := NewValidator(f, rules.Defaults(), 0, nil)
	res := v.Validate(context.Background(), source.NewDescriptor("https://news.example/feed", source.TypeFeed, ""))

	assert.True(t, res.IsValid)
	assert.False(t, res.HasRecentContent)
	assert.Equal(t, 1, res.EntriesCount)
}

func TestValidateRecordsFailures(t *testing.T) {
	f := newStubFetcher()
	f.codes["https://down.example/rss"] = 503
	f.errs["https://gone.example/rss"] = errors.New("dial tcp: connection refused")
	f.pages["https://broken.example/rss"] = "this is not a feed"

	v := NewValidator(f, rules.Defaults(), 0, nil)
	ctx := context.Background()

	res := v.Validate(ctx, source.NewDescriptor("https://down.example/rss", source.TypeFeed, ""))
	assert.False(t, res.IsValid)
	assert.Equal(t, "HTTP 503", res.Error)
	assert.Equal(t, 503, res.StatusCode)

	res = v.Validate(ctx, source.NewDescriptor("https://gone.example/rss", source.TypeFeed, ""))
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Error, "connection refused")

	res = v.Validate(ctx, source.NewDescriptor("https://broken.example/rss", source.TypeFeed, ""))
	assert.False(t, res.IsValid)
	assert.True(t, strings.HasPrefix(res.Error, "Not valid RSS"), res.Error)
}

func TestValidateHTMLCollectsFeedLinks(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://police.go.ke"] = `<html lang="en"><head>
		<title> Kenya Police Service </title>
		<meta name="description" content="Official news from the National Police Service.">
		<link rel="alternate" type="application/rss+xml" href="/news/feed.xml">
		<link rel="alternate" type="application/atom+xml" href="https://police.go.ke/atom">
		<link rel="alternate" type="application/rss+xml" href="/news/feed.xml">
		<link rel="stylesheet" type="text/css" href="/style.css">
	</head><body></body></html>`

	v := NewValidator(f, rules.Defaults(), 0, nil)
	res := v.Validate(context.Background(), source.NewDescriptor("https://police.go.ke", source.TypeGovSite, MethodAgency))

	require.True(t, res.IsValid)
	assert.Equal(t, "Kenya Police Service", res.Title)
	assert.Equal(t, "en", res.Language)
	require.NotNil(t, res.ContentSample)
	assert.Equal(t, "Official news from the National Police Service.", res.ContentSample.Summary)
	assert.Equal(t, []string{"https://police.go.ke/news/feed.xml", "https://police.go.ke/atom"}, res.FeedLinks)
	assert.Zero(t, res.EntriesCount)
}

func TestValidateSniffsFeedBehindHTMLType(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://news.example/latest"] = rssFeed("Sniffed", recentEntry())

	v := NewValidator(f, rules.Defaults(), 0, nil)
	res := v.Validate(context.Background(), source.NewDescriptor("https://news.example/latest", source.TypeNews, MethodSearch))

	require.True(t, res.IsValid)
	assert.Equal(t, 1, res.EntriesCount)
	assert.True(t, res.HasRecentContent)
}

func loadTempWhitelist(t *testing.T, entries ...source.Entry) *source.Whitelist {
	t.Helper()
	wl, err := source.LoadWhitelist(filepath.Join(t.TempDir(), "whitelist.yml"))
	require.NoError(t, err)
	for _, e := range entries {
		require.True(t, wl.Add(e))
	}
	return wl
}

func validFeedResult(url string) ValidationResult {
	published := time.Now().Add(-time.Hour)
	return ValidationResult{
		URL:     url,
		Domain:  source.Host(url),
		IsValid: true,
		ContentSample: &source.Sample{
			Title:       "Militants attack army base in Nigeria",
			Summary:     "Gunmen struck a military outpost in Borno state overnight.",
			PublishedAt: &published,
		},
	}
}

func TestPromoteAddsCredibleSource(t *testing.T) {
	wl := loadTempWhitelist(t)
	p := NewPromoter(newTestScorer(), wl, 0.7, nil)

	src := source.NewDescriptor("https://bbc.com/rss", source.TypeFeed, MethodEnumeration)
	pr := p.Promote(context.Background(), src, validFeedResult(src.URL))

	assert.Equal(t, OutcomeAdded, pr.Outcome)
	assert.Equal(t, source.TierB, pr.Tier)
	assert.InDelta(t, 0.795, pr.Score, 1e-9)

	entry, ok := wl.Lookup(src.URL)
	require.True(t, ok)
	assert.True(t, entry.AutoAdded)
	assert.Equal(t, source.TierB, entry.Tier)
	assert.Equal(t, "en", entry.Language)
	assert.Equal(t, "general", entry.CrimeType)
	require.NotNil(t, entry.CredibilityScore)
	assert.InDelta(t, 0.795, *entry.CredibilityScore, 1e-9)
	assert.NotNil(t, entry.DiscoveryDate)
}

func TestPromoteRejectsWeakAndInvalidSources(t *testing.T) {
	wl := loadTempWhitelist(t)
	p := NewPromoter(newTestScorer(), wl, 0.7, nil)
	ctx := context.Background()

	weak := source.NewDescriptor("https://example.com/rss", source.TypeFeed, MethodSearch)
	pr := p.Promote(ctx, weak, validFeedResult(weak.URL))
	assert.Equal(t, OutcomeBelowThreshold, pr.Outcome)
	assert.Less(t, pr.Score, 0.7)

	broken := source.NewDescriptor("https://bbc.com/feed", source.TypeFeed, MethodEnumeration)
	pr = p.Promote(ctx, broken, ValidationResult{URL: broken.URL, Error: "HTTP 404"})
	assert.Equal(t, OutcomeInvalid, pr.Outcome)

	assert.Zero(t, wl.Len())
}

func TestPromoteUpgradesExistingEntryOnly(t *testing.T) {
	wl := loadTempWhitelist(t,
		source.Entry{URL: "https://bbc.com/rss", Tier: source.TierC},
		source.Entry{URL: "https://reuters.com/rss", Tier: source.TierA},
	)
	p := NewPromoter(newTestScorer(), wl, 0.7, nil)
	ctx := context.Background()

	pr := p.Promote(ctx, source.NewDescriptor("https://bbc.com/rss", source.TypeFeed, ""), validFeedResult("https://bbc.com/rss"))
	assert.Equal(t, OutcomeUpgraded, pr.Outcome)
	entry, _ := wl.Lookup("https://bbc.com/rss")
	assert.Equal(t, source.TierB, entry.Tier)

	pr = p.Promote(ctx, source.NewDescriptor("https://reuters.com/rss", source.TypeFeed, ""), validFeedResult("https://reuters.com/rss"))
	assert.Equal(t, OutcomeAlreadyPresent, pr.Outcome)
	entry, _ = wl.Lookup("https://reuters.com/rss")
	assert.Equal(t, source.TierA, entry.Tier)

	assert.Equal(t, 2, wl.Len())
}

func TestPromoteCapsDeclaredTier(t *testing.T) {
	wl := loadTempWhitelist(t)
	p := NewPromoter(newTestScorer(), wl, 0.7, nil)

	src := source.NewDescriptor("https://bbc.com/feed.xml", source.TypeMonitor, MethodMonitor)
	src.DeclaredTier = source.TierC
	pr := p.Promote(context.Background(), src, validFeedResult(src.URL))

	assert.Equal(t, OutcomeAdded, pr.Outcome)
	assert.Equal(t, source.TierC, pr.Tier)
}

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, query string) ([]SearchResult, error) {
	if strings.HasSuffix(query, " RSS feed") {
		return []SearchResult{
			{Link: "https://www.bbc.com/rss/", Title: "BBC Africa"},
			{Link: "https://casino-stream.biz/feed", Title: "Totally news"},
			{Link: "https://example.com/about", Title: "Not a feed"},
		}, nil
	}
	return []SearchResult{{Link: "https://example.com/news", Title: "Example"}}, nil
}

func discoveryRules() *rules.Rules {
	r := rules.Defaults()
	r.Search = map[source.Pillar][]string{source.PillarTerrorism: {"test query"}}
	r.Discovery.NewsDomains = []string{"bbc.com"}
	r.Discovery.FeedPaths = []string{"/rss", "/feed"}
	r.Discovery.MonitorSites = nil
	r.Discovery.GovDomains = []string{"go.ke"}
	r.Discovery.AgencyPrefixes = []string{"police"}
	r.Discovery.GovSites = nil
	return r
}

func newTestDiscoverer(t *testing.T, wl *source.Whitelist, dryRun bool) (*Discoverer, *stubFetcher) {
	t.Helper()

	f := newStubFetcher()
	f.pages["https://www.bbc.com/rss/"] = rssFeed("BBC Africa", recentEntry())
	f.pages["https://police.go.ke"] = `<html><head><title>Police</title>
		<link rel="alternate" type="application/rss+xml" href="/news/feed.xml"></head></html>`
	f.pages["https://police.go.ke/news/feed.xml"] = rssFeed("Police news", recentEntry())

	r := discoveryRules()
	bl, err := blacklist.New(blacklist.File{Patterns: []string{"casino"}})
	require.NoError(t, err)

	scorer := newTestScorer()
	d := NewDiscoverer(r, bl,
		NewValidator(f, r, time.Second, nil),
		scorer,
		NewPromoter(scorer, wl, r.Discovery.PromoteScore, nil),
		wl, stubSearcher{},
		Config{Workers: 3, DryRun: dryRun},
	)
	return d, f
}

func TestDiscovererRun(t *testing.T) {
	wl := loadTempWhitelist(t)
	d, f := newTestDiscoverer(t, wl, false)

	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, Phases{Search: 3, Enumeration: 2, Agencies: 1, FeedLinks: 1}, report.Phases)
	assert.Equal(t, 1, report.Blacklisted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 5, report.Candidates)
	assert.Equal(t, 3, report.Valid)
	assert.Equal(t, 2, report.Invalid)
	assert.Equal(t, 2, report.Outcomes[OutcomeAdded])
	assert.Equal(t, 2, report.Outcomes[OutcomeInvalid])
	assert.Len(t, report.Promotions, 2)

	assert.NotContains(t, f.calls, "https://casino-stream.biz/feed")
	assert.NotContains(t, f.calls, "https://bbc.com/rss")

	reloaded, err := source.LoadWhitelist(wl.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Contains("https://www.bbc.com/rss/"))
	assert.True(t, reloaded.Contains("https://police.go.ke/news/feed.xml"))
	assert.False(t, reloaded.Contains("https://police.go.ke"))
}

func TestScoreAllScoresFirstValidCandidatePerDomain(t *testing.T) {
	strong := validFeedResult("https://allafrica.com/rss")
	weak := validFeedResult("https://allafrica.com/feed")
	weak.ContentSample.Title = "Hi"
	invalid := ValidationResult{URL: "https://allafrica.com/news", Domain: "allafrica.com"}

	tests := []struct {
		name        string
		validations []ValidationResult
		wantContent float64
	}{
		{"strong first", []ValidationResult{invalid, strong, weak}, 0.7},
		{"weak first", []ValidationResult{invalid, weak, strong}, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDiscoverer(t, loadTempWhitelist(t), true)

			candidates := make([]source.Descriptor, len(tt.validations))
			indexes := make([]int, len(tt.validations))
			for i, vr := range tt.validations {
				candidates[i] = source.NewDescriptor(vr.URL, source.TypeFeed, MethodEnumeration)
				indexes[i] = i
			}

			d.scoreAll(context.Background(), candidates, tt.validations, indexes)

			cache := d.scorer.Cache()
			assert.Equal(t, 1, cache.Len())
			r, err := cache.Lookup("allafrica.com")
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, r.ComponentScores[credibility.ComponentContent])
		})
	}
}

func TestDiscovererDryRunLeavesWhitelistUntouched(t *testing.T) {
	wl := loadTempWhitelist(t)
	d, _ := newTestDiscoverer(t, wl, true)

	report, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Outcomes[OutcomeAdded])

	_, err = os.Stat(wl.Path())
	assert.True(t, os.IsNotExist(err))

	out := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.Write(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id"`)
	assert.Contains(t, string(data), `"outcomes"`)
}

func TestWebSearcherDecodesOrganicResults(t *testing.T) {
	f := newStubFetcher()
	s, err := NewWebSearcher(f, "https://search.example/search.json", "secret")
	require.NoError(t, err)

	want := "https://search.example/search.json?api_key=secret&engine=google&num=20&q=ransomware+Africa+RSS"
	f.pages[want] = `{"organic_results":[{"link":"https://a.example/rss","title":"A","snippet":"s"},{"title":"no link"}]}`

	results, err := s.Search(context.Background(), "ransomware Africa RSS")
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{{Link: "https://a.example/rss", Title: "A", Snippet: "s"}}, results)

	_, err = s.Search(context.Background(), "missing")
	assert.Error(t, err)

	_, err = NewWebSearcher(f, "", "")
	assert.Error(t, err)
}
