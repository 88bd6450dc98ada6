package cfg

import "time"

// Commands selectable with --command.
const (
	CommandCurate   = "curate"
	CommandScore    = "score"
	CommandDiscover = "discover"
	CommandServe    = "serve"
)

type Cfg struct {
	Command string

	// Input and output files
	ItemsPath     string
	OutPath       string
	WhitelistPath string
	TieredDir     string
	BlacklistPath string
	RulesPath     string
	ReportPath    string

	// Credibility cache
	DBPath         string
	CacheMaxAge    time.Duration
	CacheRetention time.Duration

	// Outbound requests
	WorkerCount     int
	ProbeTimeout    time.Duration
	ValidateTimeout time.Duration
	UserAgent       string
	Offline         bool

	// Discovery
	DryRun         bool
	SearchAPIKey   string
	SearchEndpoint string

	// HTTP API
	Port         string
	APIAccessKey string

	RequireBlacklist bool
	LogLevel         string
	Debug            bool
	Version          string
}
