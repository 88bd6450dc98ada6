package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
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

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type httpsProber struct {
	calls atomic.Int32
}

func (p *httpsProber) Probe(context.Context, string) fetch.Reach {
	p.calls.Add(1)
	return fetch.ReachableHTTPS
}

func newTestCurator(t *testing.T, r *rules.Rules, bl blacklist.File) (*Curator, *httpsProber) {
	t.Helper()
	list, err := blacklist.New(bl)
	require.NoError(t, err)

	prober := &httpsProber{}
	clock := func() time.Time { return fixedNow }
	scorer := credibility.NewScorer(r, prober, nil, credibility.WithClock(clock))
	return NewCurator(r, list, scorer, WithWorkers(4), WithClock(clock)), prober
}

func hoursAgo(h int) *time.Time {
	t := fixedNow.Add(-time.Duration(h) * time.Hour)
	return &t
}

func TestCuratorEndToEnd(t *testing.T) {
	c, _ := newTestCurator(t, rules.Defaults(), blacklist.File{})

	items := []source.Item{
		{
			Title:       "Kenya attack kills twelve",
			Summary:     "Gunmen opened fire at a market near the border.",
			Link:        "https://bbc.com/x",
			PublishedAt: hoursAgo(3),
		},
		{
			Title:       "Kenya Attack Kills Twelve!",
			Summary:     "Gunmen opened fire at a market near the border.",
			Link:        "https://mirror-news.net/x",
			PublishedAt: hoursAgo(2),
		},
		{
			Title: "win big now",
			Link:  "https://scam-casino-bets.biz/y",
		},
	}

	corpus, err := c.Run(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, corpus.Rejected, 1)
	assert.Equal(t, ReasonSuspiciousDomain, corpus.Rejected[0].Reason)
	assert.Equal(t, "https://scam-casino-bets.biz/y", corpus.Rejected[0].Item.Link)

	terrorism := corpus.Pillars[source.PillarTerrorism]
	require.Len(t, terrorism, 1)
	canonical := terrorism[0]
	assert.Equal(t, "https://bbc.com/x", canonical.Link)
	assert.Equal(t, source.TierA, canonical.Tier)
	assert.Equal(t, source.PillarTerrorism, canonical.Pillar)
	assert.InDelta(t, 1.0/3, canonical.Confidence, 1e-9)
	assert.Equal(t, "Kenya", canonical.Geo)

	require.Len(t, corpus.Clusters, 1)
	assert.Equal(t, []string{"https://bbc.com/x", "https://mirror-news.net/x"}, corpus.Clusters[0].Members)

	assert.Equal(t, Stats{
		Input:      3,
		Rejected:   1,
		Scored:     2,
		Duplicates: 1,
		Curated:    1,
		Pillars: map[source.Pillar]int{
			source.PillarTerrorism: 1,
			source.PillarOrganised: 0,
			source.PillarFinancial: 0,
			source.PillarCyber:     0,
		},
		Tiers: map[source.Tier]int{source.TierA: 1},
	}, corpus.Stats)

	for _, p := range source.Pillars {
		assert.NotNil(t, corpus.Pillars[p], p)
	}
}

func TestCuratorRejectionReasons(t *testing.T) {
	r := rules.Defaults()
	r.Curation.MinTier = source.TierB
	c, _ := newTestCurator(t, r, blacklist.File{Domains: []string{"evil.example"}})

	items := []source.Item{
		{Title: "no source at all"},
		{Title: "Ransomware hits bank", Link: "https://news.evil.example/a"},
		{Title: "Watch free movie stream", Link: "https://free-movie-stream.net/b"},
		{Title: "ok", Link: "https://example.com/c"},
		{Title: "Ransomware gang breach hits Nigeria bank", Link: "https://reuters.com/d", PublishedAt: hoursAgo(1)},
	}

	corpus, err := c.Run(context.Background(), items)
	require.NoError(t, err)

	reasons := make([]string, len(corpus.Rejected))
	for i, rej := range corpus.Rejected {
		reasons[i] = rej.Reason
	}
	assert.Equal(t, []string{
		ReasonMissingDomain,
		"blacklisted:domain:evil.example",
		ReasonSuspiciousDomain,
		ReasonBelowMinTier,
	}, reasons)

	assert.Equal(t, 1, corpus.Stats.Curated)
	assert.Equal(t, 2, corpus.Stats.Scored)
	require.Len(t, corpus.Pillars[source.PillarCyber], 1)
	assert.Equal(t, "https://reuters.com/d", corpus.Pillars[source.PillarCyber][0].Link)
}

func TestCuratorRejectedItemsNeverReachCache(t *testing.T) {
	c, prober := newTestCurator(t, rules.Defaults(), blacklist.File{Patterns: []string{`^bad-`}})

	corpus, err := c.Run(context.Background(), []source.Item{
		{Title: "Terror attack claimed", Link: "https://bad-actor.org/x"},
		{Title: "Casino promo", SourceDomain: "casino-news.com"},
	})

	assert.True(t, errors.Is(err, ErrNoUsableItems))
	require.NotNil(t, corpus)
	assert.Equal(t, 2, corpus.Stats.Rejected)
	assert.True(t, strings.HasPrefix(corpus.Rejected[0].Reason, ReasonBlacklistedP+"pattern:"))
	assert.Zero(t, c.Scorer().Cache().Len())
	assert.Zero(t, prober.calls.Load())
}

func TestCuratorFirstItemWinsPerDomain(t *testing.T) {
	c, prober := newTestCurator(t, rules.Defaults(), blacklist.File{})

	items := []source.Item{
		{Title: "Cocaine seizure at Lagos port", Link: "https://allafrica.com/1", PublishedAt: hoursAgo(1)},
		{Title: "Quiet day", Link: "https://allafrica.com/2"},
		{Title: "Ponzi scheme collapses in Ghana", Link: "https://allafrica.com/3", PublishedAt: hoursAgo(400)},
	}

	corpus, err := c.Run(context.Background(), items)
	require.NoError(t, err)

	assert.EqualValues(t, 1, prober.calls.Load())
	assert.Equal(t, 1, c.Scorer().Cache().Len())

	got := corpus.Items()
	require.Len(t, got, 3)
	for _, it := range got {
		assert.Equal(t, got[0].Tier, it.Tier, it.Link)
	}
	assert.Equal(t, source.PillarOrganised, corpus.Pillars[source.PillarOrganised][0].Pillar)
	assert.Equal(t, "Ghana", corpus.Pillars[source.PillarFinancial][0].Geo)
	assert.Equal(t, source.PillarCyber, corpus.Pillars[source.PillarCyber][0].Pillar)
}

func TestCuratorCancelledContext(t *testing.T) {
	c, _ := newTestCurator(t, rules.Defaults(), blacklist.File{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	corpus, err := c.Run(ctx, []source.Item{{Title: "Kenya attack", Link: "https://bbc.com/x"}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, corpus)
	assert.Equal(t, 1, corpus.Stats.Input)
	assert.Equal(t, 1, corpus.Stats.Curated+corpus.Stats.Rejected)
}

// cancellingProber ends the run mid-probe and reports the host unreachable,
// which is what fetch.Prober does once its context is gone.
type cancellingProber struct {
	cancel context.CancelFunc
}

func (p *cancellingProber) Probe(context.Context, string) fetch.Reach {
	p.cancel()
	return fetch.Unreachable
}

func TestCuratorInterruptedScoreIsRejectedAndNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := rules.Defaults()
	list, err := blacklist.New(blacklist.File{})
	require.NoError(t, err)
	store := credibility.NewMemoryStore()
	cache := credibility.NewCache(store, 0)
	scorer := credibility.NewScorer(r, &cancellingProber{cancel: cancel}, cache,
		credibility.WithClock(func() time.Time { return fixedNow }))
	c := NewCurator(r, list, scorer, WithWorkers(2), WithClock(func() time.Time { return fixedNow }))

	corpus, err := c.Run(ctx, []source.Item{
		{Title: "Kenya attack kills twelve", Link: "https://bbc.com/x", PublishedAt: hoursAgo(3)},
		{Title: "Kenya police respond", Link: "https://bbc.com/y", PublishedAt: hoursAgo(2)},
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, corpus)

	assert.Zero(t, corpus.Stats.Curated)
	require.Len(t, corpus.Rejected, 2)
	for _, rej := range corpus.Rejected {
		assert.Equal(t, ReasonInterrupted, rej.Reason, rej.Item.Link)
	}

	assert.Zero(t, cache.Len())
	require.NoError(t, cache.Flush(context.Background()))
	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScoreWhitelist(t *testing.T) {
	c, _ := newTestCurator(t, rules.Defaults(), blacklist.File{Domains: []string{"spam.example"}})

	entries := []source.Entry{
		{URL: "https://bbc.com/rss", Language: "en", Tier: source.TierC},
		{URL: "https://example.com/feed", Language: "fr"},
		{URL: "https://spam.example/rss"},
	}

	scored, byTier := c.ScoreWhitelist(context.Background(), entries)
	require.Len(t, scored, 2)

	require.Len(t, byTier[source.TierB], 1)
	bbc := byTier[source.TierB][0]
	assert.Equal(t, "https://bbc.com/rss", bbc.URL)
	require.NotNil(t, bbc.CredibilityScore)
	assert.InDelta(t, 0.655, *bbc.CredibilityScore, 1e-9)

	require.Len(t, byTier[source.TierC], 1)
	assert.Equal(t, "https://example.com/feed", byTier[source.TierC][0].URL)
	assert.Equal(t, "fr", byTier[source.TierC][0].Language)
	assert.Empty(t, byTier[source.TierA])
}
