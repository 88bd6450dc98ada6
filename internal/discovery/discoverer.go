// Package discovery finds, validates and scores candidate sources and
// promotes the credible ones into the whitelist.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kithua/acw/internal/blacklist"
	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/dedup"
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
	"github.com/kithua/acw/internal/tasks"
)

const DefaultWorkers = 8

// Config controls one discovery run.
type Config struct {
	Workers     int
	TaskTimeout time.Duration
	DryRun      bool
}

// Phases counts the candidates each discovery phase produced.
type Phases struct {
	Search      int `json:"search"`
	Enumeration int `json:"enumeration"`
	Monitors    int `json:"monitors"`
	Agencies    int `json:"agencies"`
	FeedLinks   int `json:"feed_links"`
}

// Report summarizes a discovery run.
type Report struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	DryRun      bool               `json:"dry_run"`
	Phases      Phases             `json:"phases"`
	Candidates  int                `json:"candidates"`
	Blacklisted int                `json:"blacklisted"`
	Duplicates  int                `json:"duplicates"`
	Valid       int                `json:"valid"`
	Invalid     int                `json:"invalid"`
	Outcomes    map[Outcome]int    `json:"outcomes"`
	Promotions  []Promotion        `json:"promotions"`
	Validations []ValidationResult `json:"validations"`
}

// Write stores the report as indented JSON.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode discovery report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write discovery report: %w", err)
	}
	return nil
}

type Discoverer struct {
	rules     *rules.Rules
	blacklist *blacklist.Blacklist
	validator *Validator
	scorer    *credibility.Scorer
	promoter  *Promoter
	whitelist *source.Whitelist
	searcher  Searcher
	cfg       Config
	tracking  map[string]struct{}
}

// NewDiscoverer wires a discoverer. searcher may be nil, which skips the
// search phase.
func NewDiscoverer(r *rules.Rules, bl *blacklist.Blacklist, v *Validator, scorer *credibility.Scorer, p *Promoter, wl *source.Whitelist, searcher Searcher, cfg Config) *Discoverer {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = tasks.DefaultTaskTimeout
	}
	tracking := make(map[string]struct{}, len(r.Dedup.TrackingParams))
	for _, param := range r.Dedup.TrackingParams {
		tracking[param] = struct{}{}
	}
	return &Discoverer{
		rules:     r,
		blacklist: bl,
		validator: v,
		scorer:    scorer,
		promoter:  p,
		whitelist: wl,
		searcher:  searcher,
		cfg:       cfg,
		tracking:  tracking,
	}
}

// Run executes every discovery phase and returns the run report. The
// whitelist is saved at the end unless the run is a dry run.
func (d *Discoverer) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DryRun:    d.cfg.DryRun,
		Outcomes:  make(map[Outcome]int),
	}
	slog.Info("Starting source discovery", "run_id", report.RunID, "dry_run", d.cfg.DryRun)

	disc := d.rules.Discovery
	searched := searchCandidates(ctx, d.searcher, d.rules)
	enumerated := enumerationCandidates(disc)
	monitors := monitorCandidates(disc)
	agencies := agencyCandidates(disc)
	report.Phases = Phases{
		Search:      len(searched),
		Enumeration: len(enumerated),
		Monitors:    len(monitors),
		Agencies:    len(agencies),
	}
	slog.Info("Candidates collected", "search", len(searched), "enumeration", len(enumerated), "monitors", len(monitors), "agencies", len(agencies))

	seen := make(map[string]struct{})
	var all []source.Descriptor
	all = append(all, searched...)
	all = append(all, enumerated...)
	all = append(all, monitors...)
	all = append(all, agencies...)
	firstWave := d.filter(all, seen, report)

	validations := d.validateAll(ctx, firstWave)

	var agencyResults []ValidationResult
	for i, c := range firstWave {
		if c.SourceType == source.TypeGovSite {
			agencyResults = append(agencyResults, validations[i])
		}
	}
	feedLinks := feedLinkCandidates(agencyResults)
	report.Phases.FeedLinks = len(feedLinks)
	secondWave := d.filter(feedLinks, seen, report)
	if len(secondWave) > 0 {
		slog.Info("Validating government feeds", "count", len(secondWave))
		firstWave = append(firstWave, secondWave...)
		validations = append(validations, d.validateAll(ctx, secondWave)...)
	}

	report.Candidates = len(firstWave)
	report.Validations = validations

	var promotable []int
	for i, c := range firstWave {
		if validations[i].IsValid {
			report.Valid++
		} else {
			report.Invalid++
		}
		if c.SourceType != source.TypeGovSite {
			promotable = append(promotable, i)
		}
	}
	slog.Info("Validation finished", "valid", report.Valid, "invalid", report.Invalid)

	d.scoreAll(ctx, firstWave, validations, promotable)

	for _, i := range promotable {
		pr := d.promoter.Promote(ctx, firstWave[i], validations[i])
		report.Outcomes[pr.Outcome]++
		if pr.Outcome != OutcomeInvalid {
			report.Promotions = append(report.Promotions, pr)
		}
	}
	slog.Info("Promotion finished", "added", report.Outcomes[OutcomeAdded], "upgraded", report.Outcomes[OutcomeUpgraded], "below_threshold", report.Outcomes[OutcomeBelowThreshold], "interrupted", report.Outcomes[OutcomeInterrupted])

	report.FinishedAt = time.Now().UTC()
	if d.cfg.DryRun {
		slog.Info("Dry run, whitelist not written", "pending", report.Outcomes[OutcomeAdded]+report.Outcomes[OutcomeUpgraded])
		return report, ctx.Err()
	}

	if report.Outcomes[OutcomeAdded]+report.Outcomes[OutcomeUpgraded] > 0 {
		if err := d.whitelist.Save(); err != nil {
			return report, fmt.Errorf("failed to save whitelist: %w", err)
		}
		slog.Info("Whitelist saved", "path", d.whitelist.Path(), "entries", d.whitelist.Len())
	}
	return report, ctx.Err()
}

// filter drops blacklisted candidates and candidates whose normalized URL
// was already seen.
func (d *Discoverer) filter(candidates []source.Descriptor, seen map[string]struct{}, report *Report) []source.Descriptor {
	var out []source.Descriptor
	for _, c := range candidates {
		if reason, hit := d.blacklist.MatchURL(c.URL); hit {
			slog.Debug("Skipping blacklisted candidate", "url", c.URL, "reason", reason)
			report.Blacklisted++
			continue
		}
		key := dedup.NormalizeLink(c.URL, d.tracking)
		if _, dup := seen[key]; dup || key == "" {
			report.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// validateAll validates candidates on the worker pool. Results keep the
// candidate order.
func (d *Discoverer) validateAll(ctx context.Context, candidates []source.Descriptor) []ValidationResult {
	results := make([]ValidationResult, len(candidates))
	for i, c := range candidates {
		results[i] = ValidationResult{URL: c.URL, Domain: c.Domain, Error: "not validated"}
	}

	d.runPool(ctx, len(candidates), func(i int) tasks.TaskInterface {
		c := candidates[i]
		return tasks.NewFuncTask(tasks.TaskTypeValidateSource, c.URL, func(ctx context.Context) error {
			results[i] = d.validator.Validate(ctx, c)
			return nil
		})
	})
	return results
}

// scoreAll scores valid candidates concurrently so that promotion, which
// runs in candidate order, reads cached results. Only the first valid
// candidate of each domain is scored, so its sample decides the domain's
// result regardless of scheduling.
func (d *Discoverer) scoreAll(ctx context.Context, candidates []source.Descriptor, validations []ValidationResult, indexes []int) {
	seen := make(map[string]struct{})
	var leaders []int
	for _, i := range indexes {
		if !validations[i].IsValid {
			continue
		}
		domain := credibility.SourceSubject(candidates[i], nil).Domain
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		leaders = append(leaders, i)
	}

	d.runPool(ctx, len(leaders), func(n int) tasks.TaskInterface {
		i := leaders[n]
		c := candidates[i]
		return tasks.NewFuncTask(tasks.TaskTypeScoreSource, c.URL, func(ctx context.Context) error {
			if d.scorer.Score(ctx, credibility.SourceSubject(c, validations[i].ContentSample)) == nil {
				return credibility.ErrInterrupted
			}
			return nil
		}).WithRetries(tasks.ScoreRetries)
	})
}

func (d *Discoverer) runPool(ctx context.Context, n int, build func(i int) tasks.TaskInterface) {
	if n == 0 {
		return
	}
	pool := tasks.NewPool(ctx, min(d.cfg.Workers, n), d.cfg.TaskTimeout)
	pool.Start()

	for i := 0; i < n; i++ {
		if err := pool.Submit(build(i)); err != nil {
			slog.Warn("Stopped submitting tasks", "submitted", i, "total", n, "error", err)
			break
		}
	}
	pool.Wait()
}
