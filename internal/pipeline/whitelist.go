package pipeline

import (
	"context"
	"log/slog"

	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/source"
	"github.com/kithua/acw/internal/tasks"
)

// ScoredEntry pairs a whitelist entry with its credibility verdict.
type ScoredEntry struct {
	Entry  source.Entry        `json:"source"`
	Result *credibility.Result `json:"score"`
}

// ScoreWhitelist scores every whitelist entry by its domain and groups the
// entries by computed tier. Each grouped entry carries the computed tier and
// score. Entries whose domain is blacklisted are skipped.
func (c *Curator) ScoreWhitelist(ctx context.Context, entries []source.Entry) ([]ScoredEntry, map[source.Tier][]source.Entry) {
	scored := make([]ScoredEntry, len(entries))
	skip := make([]bool, len(entries))

	pool := tasks.NewPool(ctx, c.workers, tasks.DefaultTaskTimeout)
	pool.Start()
	for i, e := range entries {
		if rule, hit := c.blacklist.MatchURL(e.URL); hit {
			slog.Warn("Skipping blacklisted whitelist entry", "url", e.URL, "rule", rule)
			skip[i] = true
			continue
		}
		task := tasks.NewFuncTask(tasks.TaskTypeScoreSource, e.URL, func(ctx context.Context) error {
			scored[i] = ScoredEntry{
				Entry:  e,
				Result: c.scorer.Score(ctx, credibility.SourceSubject(e.Descriptor(), nil)),
			}
			if scored[i].Result == nil {
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

	out := make([]ScoredEntry, 0, len(entries))
	byTier := make(map[source.Tier][]source.Entry, len(source.Tiers))
	for i, s := range scored {
		if skip[i] || s.Result == nil {
			continue
		}
		e := s.Entry
		score := s.Result.OverallScore
		e.Tier = s.Result.Tier
		e.CredibilityScore = &score
		byTier[e.Tier] = append(byTier[e.Tier], e)
		out = append(out, s)

		slog.Info("Source scored", "tier", s.Result.Tier, "score", score, "url", e.URL)
	}
	return out, byTier
}
