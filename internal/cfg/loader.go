package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	Command string `long:"command" env:"ACW_COMMAND" default:"curate" choice:"curate" choice:"score" choice:"discover" choice:"serve" description:"Operation to run"`

	// Input and output files
	ItemsPath     string `long:"items" env:"ITEMS_FILE" default:"items.json" description:"JSON array of raw items to curate"`
	OutPath       string `long:"out" env:"CORPUS_FILE" default:"corpus.json" description:"Where the curated corpus is written"`
	WhitelistPath string `long:"whitelist" env:"WHITELIST_FILE" default:"config/whitelist.yml" description:"Whitelist of trusted sources"`
	TieredDir     string `long:"tiered-dir" env:"TIERED_DIR" default:"config" description:"Directory for whitelist_tier_{a,b,c}.yml"`
	BlacklistPath string `long:"blacklist" env:"BLACKLIST_FILE" default:"config/blacklist.yml" description:"Blacklist of domains, IP ranges and patterns"`
	RulesPath     string `long:"rules" env:"RULES_FILE" description:"Optional YAML file overriding the built-in curation rules"`
	ReportPath    string `long:"report" env:"DISCOVERY_REPORT" description:"Where the discovery report is written (optional)"`

	// Credibility cache
	DBPath         string        `long:"db-path" env:"DB_PATH" default:"data/credibility.db" description:"SQLite credibility cache"`
	CacheMaxAge    time.Duration `long:"cache-max-age" env:"CACHE_MAX_AGE" default:"0s" description:"Reuse persisted scores younger than this (0 disables)"`
	CacheRetention time.Duration `long:"cache-retention" env:"CACHE_RETENTION" default:"2160h" description:"Drop persisted scores older than this at start (0 keeps everything)"`

	// Outbound requests
	WorkerCount     int           `long:"worker-count" env:"WORKER_COUNT" default:"8" description:"Number of concurrent workers for scoring and validation"`
	ProbeTimeout    time.Duration `long:"probe-timeout" env:"PROBE_TIMEOUT" default:"5s" description:"Timeout of each reachability probe"`
	ValidateTimeout time.Duration `long:"validate-timeout" env:"VALIDATE_TIMEOUT" default:"15s" description:"Timeout of each source validation fetch"`
	UserAgent       string        `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; acw-source-validator/1.0)" description:"User agent string for HTTP requests"`
	Offline         bool          `long:"offline" env:"OFFLINE" description:"Skip reachability probes and score technical trust as neutral"`

	// Discovery
	DryRun         bool   `long:"dry-run" env:"DRY_RUN" description:"Do not write the whitelist during discovery"`
	SearchAPIKey   string `long:"search-api-key" env:"SERPAPI_KEY" description:"Search API key; the search phase is skipped without it"`
	SearchEndpoint string `long:"search-endpoint" env:"SEARCH_ENDPOINT" default:"https://serpapi.com/search.json" description:"Search API endpoint"`

	// HTTP API
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	RequireBlacklist bool   `long:"require-blacklist" env:"REQUIRE_BLACKLIST" description:"Fail when the blacklist file is missing"`
	LogLevel         string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	Debug            bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses args and the environment. It returns nil, nil when help was
// requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Command:          raw.Command,
		ItemsPath:        raw.ItemsPath,
		OutPath:          raw.OutPath,
		WhitelistPath:    raw.WhitelistPath,
		TieredDir:        raw.TieredDir,
		BlacklistPath:    raw.BlacklistPath,
		RulesPath:        raw.RulesPath,
		ReportPath:       raw.ReportPath,
		DBPath:           raw.DBPath,
		CacheMaxAge:      raw.CacheMaxAge,
		CacheRetention:   raw.CacheRetention,
		WorkerCount:      raw.WorkerCount,
		ProbeTimeout:     raw.ProbeTimeout,
		ValidateTimeout:  raw.ValidateTimeout,
		UserAgent:        raw.UserAgent,
		Offline:          raw.Offline,
		DryRun:           raw.DryRun,
		SearchAPIKey:     raw.SearchAPIKey,
		SearchEndpoint:   raw.SearchEndpoint,
		Port:             raw.Port,
		APIAccessKey:     raw.APIAccessKey,
		RequireBlacklist: raw.RequireBlacklist,
		LogLevel:         raw.LogLevel,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.ProbeTimeout <= 0 || c.ValidateTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.CacheMaxAge < 0 || c.CacheRetention < 0 {
		return errors.New("cache durations must not be negative")
	}
	return nil
}

// Level returns the effective log level; --debug wins over --log-level.
func (c *Cfg) Level() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
