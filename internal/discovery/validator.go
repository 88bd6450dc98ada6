package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kithua/acw/internal/fetch"
	"github.com/kithua/acw/internal/metrics"
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

const DefaultValidateTimeout = 15 * time.Second

// ValidationResult records whether a candidate source is usable.
type ValidationResult struct {
	URL              string         `json:"url"`
	Domain           string         `json:"domain"`
	IsValid          bool           `json:"is_valid"`
	Error            string         `json:"error,omitempty"`
	StatusCode       int            `json:"status_code,omitempty"`
	ResponseTime     float64        `json:"response_time"`
	HasRecentContent bool           `json:"has_recent_content"`
	ContentSample    *source.Sample `json:"content_sample,omitempty"`
	EntriesCount     int            `json:"entries_count"`
	FeedLinks        []string       `json:"feed_links,omitempty"`
	Title            string         `json:"title,omitempty"`
	Language         string         `json:"language,omitempty"`
}

// Fetcher is the outbound GET the validator relies on.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

type Validator struct {
	fetcher Fetcher
	parser  *Parser
	rules   *rules.Rules
	timeout time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewValidator(fetcher Fetcher, r *rules.Rules, timeout time.Duration, m *metrics.Metrics) *Validator {
	if timeout <= 0 {
		timeout = DefaultValidateTimeout
	}
	return &Validator{
		fetcher: fetcher,
		parser:  NewParser(),
		rules:   r,
		timeout: timeout,
		metrics: m,
		now:     time.Now,
	}
}

// Validate fetches src once and inspects the body. Failures are recorded in
// the result; Validate never returns an error.
func (v *Validator) Validate(ctx context.Context, src source.Descriptor) ValidationResult {
	res := ValidationResult{URL: src.URL, Domain: source.Host(src.URL)}
	defer func() { v.metrics.SourceValidated(res.IsValid) }()

	start := time.Now()
	resp, err := v.fetcher.Get(ctx, src.URL, v.timeout)
	res.ResponseTime = time.Since(start).Seconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.StatusCode = resp.StatusCode
	if resp.StatusCode != 200 {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return res
	}

	if src.IsFeed() || LooksLikeFeed(resp.Body) {
		v.inspectFeed(&res, resp.Body)
		return res
	}

	v.inspectHTML(&res, resp)
	return res
}

func (v *Validator) inspectFeed(res *ValidationResult, body []byte) {
	meta, items, err := v.parser.Run(body)
	if err != nil {
		res.Error = fmt.Sprintf("Not valid RSS: %v", err)
		return
	}

	d := v.rules.Discovery
	res.Title = meta.Title
	res.Language = meta.Language
	res.EntriesCount = len(items)
	res.HasRecentContent = hasRecent(items, d.RecentEntries, d.RecentDays, v.now())

	if len(items) > 0 {
		first := items[0]
		res.ContentSample = &source.Sample{
			Title:       first.Title,
			Summary:     truncate(first.Summary, d.SampleChars),
			PublishedAt: first.PublishedAt,
		}
	}
	res.IsValid = true
}

// inspectHTML accepts any 200 page and collects its title, description and
// advertised RSS/Atom links.
func (v *Validator) inspectHTML(res *ValidationResult, resp *fetch.Response) {
	res.IsValid = true

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	desc, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	if desc == "" {
		desc, _ = doc.Find(`meta[property="og:description"]`).First().Attr("content")
	}
	res.Title = title
	res.Language, _ = doc.Find("html").First().Attr("lang")
	if title != "" || desc != "" {
		res.ContentSample = &source.Sample{
			Title:   title,
			Summary: truncate(strings.TrimSpace(desc), v.rules.Discovery.SampleChars),
		}
	}

	base, err := url.Parse(resp.URL)
	if err != nil {
		base, _ = url.Parse(res.URL)
	}
	seen := make(map[string]struct{})
	doc.Find("link[type][href]").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		typ = strings.ToLower(typ)
		if !strings.Contains(typ, "rss") && !strings.Contains(typ, "atom") {
			return
		}
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := ref.String()
		if base != nil {
			abs = base.ResolveReference(ref).String()
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		res.FeedLinks = append(res.FeedLinks, abs)
	})
}
