// Package pipeline curates a batch of raw items into a scored, classified,
// deduplicated corpus.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kithua/acw/internal/blacklist"
	"github.com/kithua/acw/internal/classify"
	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/dedup"
	"github.com/kithua/acw/internal/metrics"
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
	"github.com/kithua/acw/internal/tasks"
)

// ErrNoUsableItems is returned when a batch yields an empty corpus.
var ErrNoUsableItems = errors.New("no usable items")

const DefaultWorkers = 8

type Curator struct {
	rules      *rules.Rules
	blacklist  *blacklist.Blacklist
	scorer     *credibility.Scorer
	classifier *classify.Classifier
	dedup      *dedup.Engine
	metrics    *metrics.Metrics
	workers    int
	now        func() time.Time
}

type Option func(*Curator)

func WithWorkers(n int) Option {
	return func(c *Curator) { c.workers = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Curator) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Curator) { c.now = now }
}

func NewCurator(r *rules.Rules, bl *blacklist.Blacklist, scorer *credibility.Scorer, opts ...Option) *Curator {
	c := &Curator{
		rules:      r,
		blacklist:  bl,
		scorer:     scorer,
		classifier: classify.New(r),
		dedup:      dedup.New(r),
		workers:    DefaultWorkers,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	return c
}

func (c *Curator) Classifier() *classify.Classifier {
	return c.classifier
}

func (c *Curator) Scorer() *credibility.Scorer {
	return c.scorer
}

// Run curates items. Rejected items are recorded on the corpus, never
// returned as errors. When ctx is cancelled the corpus holds whatever was
// scored before the cancellation and ctx's error is returned with it.
func (c *Curator) Run(ctx context.Context, items []source.Item) (*Corpus, error) {
	start := time.Now()
	corpus := newCorpus(c.now(), len(items))

	accepted := make([]source.Item, 0, len(items))
	for _, it := range items {
		if reason, ok := c.admit(it); !ok {
			corpus.reject(it, reason)
			c.metrics.ItemRejected(rejectionLabel(reason))
			slog.Debug("Item rejected", "link", it.Link, "reason", reason)
			continue
		}
		accepted = append(accepted, it)
	}

	results := c.scoreAll(ctx, accepted)

	var kept []source.Item
	for i, it := range accepted {
		res := results[i]
		if res == nil {
			corpus.reject(it, ReasonInterrupted)
			continue
		}
		corpus.Stats.Scored++

		it.Tier = res.Tier
		if it.Tier.Rank() < c.rules.Curation.MinTier.Rank() {
			corpus.reject(it, ReasonBelowMinTier)
			c.metrics.ItemRejected(ReasonBelowMinTier)
			continue
		}

		cls := c.classifier.ClassifyItem(it)
		it.Pillar = cls.Pillar
		it.Confidence = cls.Confidence
		if it.Geo == "" {
			it.Geo = c.geoTag(it)
		}
		kept = append(kept, it)
	}

	clusters := c.dedup.Clusters(kept)
	corpus.addClusters(clusters)
	c.metrics.DuplicatesCollapsed(corpus.Stats.Duplicates)
	for _, cl := range clusters {
		corpus.add(cl.Canonical)
		c.metrics.ItemCurated(string(cl.Canonical.Pillar))
	}

	slog.Info("Curation finished",
		"input", corpus.Stats.Input,
		"rejected", corpus.Stats.Rejected,
		"duplicates", corpus.Stats.Duplicates,
		"curated", corpus.Stats.Curated,
		"terrorism", corpus.Stats.Pillars[source.PillarTerrorism],
		"organised", corpus.Stats.Pillars[source.PillarOrganised],
		"financial", corpus.Stats.Pillars[source.PillarFinancial],
		"cyber", corpus.Stats.Pillars[source.PillarCyber],
		"duration", time.Since(start))

	if err := ctx.Err(); err != nil {
		return corpus, err
	}
	if corpus.Stats.Curated == 0 {
		return corpus, ErrNoUsableItems
	}
	return corpus, nil
}

// admit applies the pre-scoring filters in order. Rejected items never
// reach the credibility cache.
func (c *Curator) admit(it source.Item) (string, bool) {
	domain := it.Domain()
	if domain == "" {
		return ReasonMissingDomain, false
	}
	if rule, hit := c.blacklist.Match(domain); hit {
		return ReasonBlacklistedP + rule, false
	}
	if c.scorer.Reputation().Score(domain) <= c.rules.Curation.RejectReputation {
		return ReasonSuspiciousDomain, false
	}
	return "", true
}

// scoreAll scores the first item of every domain on the worker pool and
// hands the shared result to the rest, so the first item of a domain wins
// regardless of scheduling.
func (c *Curator) scoreAll(ctx context.Context, items []source.Item) []*credibility.Result {
	results := make([]*credibility.Result, len(items))

	first := make(map[string]int)
	var leaders []int
	for i, it := range items {
		d := it.Domain()
		if _, ok := first[d]; !ok {
			first[d] = i
			leaders = append(leaders, i)
		}
	}

	if len(leaders) > 0 {
		pool := tasks.NewPool(ctx, min(c.workers, len(leaders)), tasks.DefaultTaskTimeout)
		pool.Start()
		for _, i := range leaders {
			it := items[i]
			task := tasks.NewFuncTask(tasks.TaskTypeScoreItem, it.Domain(), func(ctx context.Context) error {
				results[i] = c.scorer.Score(ctx, credibility.ItemSubject(it))
				if results[i] == nil {
					return credibility.ErrInterrupted
				}
				return nil
			}).WithRetries(tasks.ScoreRetries)
			if err := pool.Submit(task); err != nil {
				slog.Warn("Scoring interrupted", "error", err)
				break
			}
		}
		pool.Wait()
	}

	for i, it := range items {
		if results[i] == nil {
			results[i] = results[first[it.Domain()]]
		}
	}
	return results
}

func (c *Curator) geoTag(it source.Item) string {
	countries := c.scorer.Geography().Countries(it.Title + " " + it.Summary)
	if len(countries) == 0 {
		return ""
	}
	return cases.Title(language.English).String(countries[0])
}

func rejectionLabel(reason string) string {
	if strings.HasPrefix(reason, ReasonBlacklistedP) {
		return "blacklisted"
	}
	return reason
}
