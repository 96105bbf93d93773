package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Upstream catalog
	UpstreamURL    string        `long:"upstream-url" env:"UPSTREAM_URL" default:"https://api.festivals.example.com" description:"Base URL of the festival catalog API"`
	Lang           string        `long:"lang" env:"LANG_CODE" default:"kor" description:"Language of listing and search pages"`
	DetailLang     string        `long:"detail-lang" env:"DETAIL_LANG" default:"eng" description:"Language of detail lookups"`
	PageSize       int           `long:"page-size" env:"PAGE_SIZE" default:"12" description:"Records per upstream page"`
	EventStartDate string        `long:"event-start-date" env:"EVENT_START_DATE" default:"20240701" description:"Lower bound (YYYYMMDD) sent with listing requests"`
	RateLimit      int           `long:"rate-limit" env:"RATE_LIMIT" default:"10" description:"Upstream requests per second (0 disables limiting)"`
	MaxRetries     int           `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Retries for throttled or failed upstream requests"`
	Timeout        time.Duration `long:"timeout" env:"UPSTREAM_TIMEOUT" default:"30s" description:"Upstream request timeout"`

	// Catalog behaviour
	DelegateRegion bool   `long:"delegate-region" env:"DELEGATE_REGION" description:"Send the region filter upstream as areaCode"`
	RegionsFile    string `long:"regions-file" env:"REGIONS_FILE" description:"YAML file overriding the built-in region table"`
	FeaturedCount  int    `long:"featured-count" env:"FEATURED_COUNT" default:"5" description:"Number of featured festivals per session"`

	// Detail store
	DBPath         string        `long:"db-path" env:"DB_PATH" default:"./data/festivals.db" description:"SQLite database holding resolved details"`
	DetailCacheTTL time.Duration `long:"detail-cache-ttl" env:"DETAIL_CACHE_TTL" default:"24h" description:"How long stored details are served without refetching (0 keeps them forever)"`

	// Sessions
	SessionTTL      time.Duration `long:"session-ttl" env:"SESSION_TTL" default:"30m" description:"Idle time after which a session is dropped"`
	JanitorSchedule string        `long:"janitor-schedule" env:"JANITOR_SCHEDULE" default:"@every 1m" description:"Cron schedule of the idle session sweep"`

	// Application configuration
	Port    string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://festivals.example.com)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Festival Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Asia/Seoul" description:"Timezone used to decide whether a festival has ended"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var validate = validator.New()

// Load reads an optional .env file, then flags and environment variables.
// It returns nil without error when help was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := LoadArgs(os.Args[1:])
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

// LoadArgs parses and validates args without touching process-wide state.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		UpstreamURL:     raw.UpstreamURL,
		Lang:            raw.Lang,
		DetailLang:      raw.DetailLang,
		PageSize:        raw.PageSize,
		EventStartDate:  raw.EventStartDate,
		RateLimit:       raw.RateLimit,
		MaxRetries:      raw.MaxRetries,
		Timeout:         raw.Timeout,
		DelegateRegion:  raw.DelegateRegion,
		RegionsFile:     raw.RegionsFile,
		FeaturedCount:   raw.FeaturedCount,
		DBPath:          raw.DBPath,
		DetailCacheTTL:  raw.DetailCacheTTL,
		SessionTTL:      raw.SessionTTL,
		JanitorSchedule: raw.JanitorSchedule,
		Port:            raw.Port,
		BaseUrl:         raw.BaseUrl,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			slog.Debug("Timezone configured", "timezone", timezone)
		}
	}
	return nil
}
