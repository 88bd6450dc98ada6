package discovery

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/kithua/acw/internal/source"
)

// FeedMeta describes a parsed feed.
type FeedMeta struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Parser turns RSS, Atom or JSON feed bytes into items.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Run parses data. A gofeed.Parser keeps per-call state, so one is built for
// every call.
func (p *Parser) Run(data []byte) (*FeedMeta, []source.Item, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	meta := &FeedMeta{
		Title:       strings.TrimSpace(feed.Title),
		Link:        feed.Link,
		Description: strings.TrimSpace(feed.Description),
		Language:    feed.Language,
	}

	items := make([]source.Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, p.normalizeItem(it, meta.Language))
	}
	return meta, items, nil
}

func (p *Parser) normalizeItem(it *gofeed.Item, lang string) source.Item {
	item := source.Item{
		Title:    strings.TrimSpace(it.Title),
		Summary:  strings.TrimSpace(cmp.Or(it.Description, it.Content)),
		Link:     it.Link,
		Language: lang,
	}
	if ts := cmp.Or(it.PublishedParsed, it.UpdatedParsed); ts != nil {
		t := ts.UTC()
		item.PublishedAt = &t
	}
	return item
}

// LooksLikeFeed sniffs data for an RSS, Atom or JSON feed root.
func LooksLikeFeed(data []byte) bool {
	return gofeed.DetectFeedType(bytes.NewReader(data)) != gofeed.FeedTypeUnknown
}

// hasRecent reports whether any of the first n items is at most days old.
func hasRecent(items []source.Item, n, days int, now time.Time) bool {
	limit := time.Duration(days) * 24 * time.Hour
	for i, it := range items {
		if i >= n {
			break
		}
		if it.PublishedAt != nil && now.Sub(*it.PublishedAt) <= limit {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
