package cfg

import (
	"cmp"
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
	// Storage configuration
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/prompt-comb.db" description:"Path to the SQLite database file"`
	SettingsFile string `long:"settings-file" env:"SETTINGS_FILE" default:"./settings.yml" description:"YAML file holding runtime settings (prompt template, GitHub token, expiry, fetch strategy)"`
	ResetDB      bool   `long:"reset-db" env:"RESET_DB" description:"Drop and recreate all tables on startup"`

	// Application configuration
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount     int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers"`
	SweepInterval   int    `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"86400" description:"Expired data sweep interval in seconds"`
	APIAccessKey    string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (required for /api routes)"`
	FetchTimeout    int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Post fetch timeout in seconds"`
	GitHubTimeout   int    `long:"github-timeout" env:"GITHUB_TIMEOUT" default:"15" description:"GitHub API and raw file timeout in seconds"`
	RequestTimeout  int    `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"60" description:"Total time in seconds a post fetch or snippet update may spend on remote requests"`
	RedisAddr       string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the snippet cache (in-memory cache when empty)"`
	SnippetCacheTTL int    `long:"snippet-cache-ttl" env:"SNIPPET_CACHE_TTL" default:"600" description:"Snippet cache TTL in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Prompt Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging regardless of the debug_mode setting"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"Also write JSON log records to this file"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		SettingsFile:    raw.SettingsFile,
		ResetDB:         raw.ResetDB,
		Port:            raw.Port,
		WorkerCount:     raw.WorkerCount,
		SweepInterval:   raw.SweepInterval,
		APIAccessKey:    raw.APIAccessKey,
		FetchTimeout:    raw.FetchTimeout,
		GitHubTimeout:   raw.GitHubTimeout,
		RequestTimeout:  raw.RequestTimeout,
		RedisAddr:       raw.RedisAddr,
		SnippetCacheTTL: raw.SnippetCacheTTL,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		LogFile:         raw.LogFile,
		Version:         GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	positive := map[string]int{
		"worker count":      cfg.WorkerCount,
		"sweep interval":    cfg.SweepInterval,
		"fetch timeout":     cfg.FetchTimeout,
		"github timeout":    cfg.GitHubTimeout,
		"request timeout":   cfg.RequestTimeout,
		"snippet cache ttl": cfg.SnippetCacheTTL,
	}

	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
