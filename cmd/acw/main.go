package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kithua/acw/internal/api"
	"github.com/kithua/acw/internal/blacklist"
	"github.com/kithua/acw/internal/cfg"
	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/database"
	"github.com/kithua/acw/internal/discovery"
	"github.com/kithua/acw/internal/fetch"
	"github.com/kithua/acw/internal/logging"
	"github.com/kithua/acw/internal/metrics"
	"github.com/kithua/acw/internal/pipeline"
	"github.com/kithua/acw/internal/rules"
	"github.com/kithua/acw/internal/source"
)

func main() {
	appCfg, err := cfg.Load(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if appCfg == nil {
		return
	}

	slog.SetDefault(logging.New(appCfg.Level()))
	slog.Info("Starting acw", "command", appCfg.Command, "version", appCfg.Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appCfg); err != nil {
		slog.Error("Command failed", "command", appCfg.Command, "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg       *cfg.Cfg
	rules     *rules.Rules
	blacklist *blacklist.Blacklist
	db        *database.DB
	repo      *database.CredibilityRepository
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	client    *fetch.Client
	scorer    *credibility.Scorer
	curator   *pipeline.Curator
}

func newApp(ctx context.Context, c *cfg.Cfg) (*app, error) {
	r, err := rules.Load(c.RulesPath)
	if err != nil {
		return nil, err
	}

	bl, err := blacklist.Load(c.BlacklistPath, c.RequireBlacklist)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(c.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := database.Open(c.DBPath)
	if err != nil {
		return nil, err
	}
	repo := database.NewCredibilityRepository(db)

	if c.CacheRetention > 0 {
		removed, err := repo.DeleteOlderThan(ctx, time.Now().Add(-c.CacheRetention))
		if err != nil {
			db.Close()
			return nil, err
		}
		if removed > 0 {
			slog.Info("Pruned stale credibility records", "removed", removed, "retention", c.CacheRetention.String())
		}
	}

	cache := credibility.NewCache(repo, c.CacheMaxAge)
	if err := cache.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	opts := fetch.DefaultOptions()
	opts.UserAgent = c.UserAgent
	client := fetch.NewClient(nil, opts)

	var prober credibility.Prober
	if c.Offline {
		slog.Info("Offline mode, technical trust is neutral")
	} else {
		prober = fetch.Prober{Client: client, Timeout: c.ProbeTimeout}
	}

	scorer := credibility.NewScorer(r, prober, cache, credibility.WithMetrics(m))
	curator := pipeline.NewCurator(r, bl, scorer,
		pipeline.WithWorkers(c.WorkerCount),
		pipeline.WithMetrics(m),
	)

	return &app{
		cfg:       c,
		rules:     r,
		blacklist: bl,
		db:        db,
		repo:      repo,
		registry:  reg,
		metrics:   m,
		client:    client,
		scorer:    scorer,
		curator:   curator,
	}, nil
}

// close persists the credibility cache and releases the database. It uses
// its own context so an interrupted run still flushes.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.scorer.Cache().Flush(ctx); err != nil {
		slog.Error("Failed to flush credibility cache", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

func run(ctx context.Context, c *cfg.Cfg) error {
	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.close()

	switch c.Command {
	case cfg.CommandCurate:
		return a.curate(ctx)
	case cfg.CommandScore:
		return a.score(ctx)
	case cfg.CommandDiscover:
		return a.discover(ctx)
	case cfg.CommandServe:
		return a.serve(ctx)
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}
}

func (a *app) curate(ctx context.Context) error {
	items, err := pipeline.ReadItems(a.cfg.ItemsPath)
	if err != nil {
		return err
	}
	slog.Info("Curating items", "count", len(items), "path", a.cfg.ItemsPath)

	corpus, runErr := a.curator.Run(ctx, items)
	if corpus != nil {
		if err := corpus.Write(a.cfg.OutPath); err != nil {
			return err
		}
		slog.Info("Corpus written", "path", a.cfg.OutPath, "curated", corpus.Stats.Curated)
	}
	return runErr
}

func (a *app) score(ctx context.Context) error {
	wl, err := source.LoadWhitelist(a.cfg.WhitelistPath)
	if err != nil {
		return err
	}

	_, byTier := a.curator.ScoreWhitelist(ctx, wl.Entries())
	paths, err := source.WriteTiered(a.cfg.TieredDir, byTier)
	if err != nil {
		return err
	}
	for i, tier := range []source.Tier{source.TierA, source.TierB, source.TierC} {
		slog.Info("Tiered whitelist written", "tier", tier, "sources", len(byTier[tier]), "path", paths[i])
	}
	if n := len(byTier[source.TierD]); n > 0 {
		slog.Info("Tier D sources left out", "sources", n)
	}
	return ctx.Err()
}

func (a *app) discover(ctx context.Context) error {
	wl, err := source.LoadWhitelist(a.cfg.WhitelistPath)
	if err != nil {
		return err
	}

	var searcher discovery.Searcher
	if a.cfg.SearchAPIKey != "" {
		ws, err := discovery.NewWebSearcher(a.client, a.cfg.SearchEndpoint, a.cfg.SearchAPIKey)
		if err != nil {
			return err
		}
		searcher = ws
	} else {
		slog.Info("No search API key, skipping search phase")
	}

	validator := discovery.NewValidator(a.client, a.rules, a.cfg.ValidateTimeout, a.metrics)
	promoter := discovery.NewPromoter(a.scorer, wl, a.rules.Discovery.PromoteScore, a.metrics)
	d := discovery.NewDiscoverer(a.rules, a.blacklist, validator, a.scorer, promoter, wl, searcher, discovery.Config{
		Workers: a.cfg.WorkerCount,
		DryRun:  a.cfg.DryRun,
	})

	report, runErr := d.Run(ctx)
	if report != nil && a.cfg.ReportPath != "" {
		if err := report.Write(a.cfg.ReportPath); err != nil {
			return err
		}
		slog.Info("Discovery report written", "path", a.cfg.ReportPath)
	}
	return runErr
}

func (a *app) serve(ctx context.Context) error {
	validator := discovery.NewValidator(a.client, a.rules, a.cfg.ValidateTimeout, a.metrics)
	handler := api.NewHandler(a.curator, validator, a.repo, a.blacklist, a.registry, a.cfg.Version)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      api.NewServer(handler, a.cfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", a.cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
	return serveErr
}
