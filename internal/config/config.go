// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the bot's settings:
// Telegram credentials, the order store, business-day rules, the broadcast
// schedule, the HTTP server, rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-order-bot/internal/sysutil"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-order-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig holds the bot credentials and the delivery mode.
type TelegramConfig struct {
	Token string // TELEGRAM_TOKEN
	// WebhookURL is the public base URL; empty selects long polling.
	WebhookURL string
	// WebhookSecret is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string
	// Debug makes the Telegram client log every request.
	Debug bool // TELEGRAM_DEBUG
}

// StoreConfig identifies the order store.
type StoreConfig struct {
	SpreadsheetID string // SPREADSHEET_ID
	Credentials   string // STORE_CREDS_JSON (alias GOOGLE_CREDS_JSON)
}

// BusinessConfig holds the ordering rules.
type BusinessConfig struct {
	Location *time.Location // TZ_NAME
	// Cutoff is the time of day after which tomorrow's orders are closed.
	Cutoff time.Duration // ORDER_CUTOFF as HH:MM
}

// BroadcastConfig schedules the morning reminder.
type BroadcastConfig struct {
	At   time.Duration  // BROADCAST_AT as HH:MM
	Days []time.Weekday // BROADCAST_DAYS
	Text string         // BROADCAST_TEXT; empty uses the built-in reminder
	RPS  float64        // BROADCAST_RPS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	Telegram  TelegramConfig
	Store     StoreConfig
	Business  BusinessConfig
	Broadcast BroadcastConfig

	// Rate limiting of webhook ingress
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// UpdateDedupTTL is how long a processed update_id is remembered.
	UpdateDedupTTL time.Duration

	// Observability
	OTEL OTELConfig
}

// ErrMissingToken is returned by RequireBot when TELEGRAM_TOKEN is unset.
var ErrMissingToken = errors.New("TELEGRAM_TOKEN must be set")

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Telegram: TelegramConfig{
			Token:         strings.TrimSpace(getenv("TELEGRAM_TOKEN", "")),
			WebhookURL:    strings.TrimRight(strings.TrimSpace(getenv("WEBHOOK_URL", "")), "/"),
			WebhookSecret: getenv("WEBHOOK_SECRET", ""),
			Debug:         sysutil.IsTruthy(os.Getenv("TELEGRAM_DEBUG")),
		},
		Store: StoreConfig{
			SpreadsheetID: strings.TrimSpace(getenv("SPREADSHEET_ID", "")),
			Credentials:   sysutil.FirstNonEmpty(os.Getenv("STORE_CREDS_JSON"), os.Getenv("GOOGLE_CREDS_JSON")),
		},
		Broadcast: BroadcastConfig{
			Text: getenv("BROADCAST_TEXT", ""),
			RPS:  getfloat("BROADCAST_RPS", 25),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20),
		RateBurst: getint("RATE_BURST", 40),

		UpdateDedupTTL: getdur("UPDATE_DEDUP_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-order-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- parsing of structured values ---
	var err error
	if cfg.Business.Location, err = getlocation("TZ_NAME"); err != nil {
		return cfg, err
	}
	if cfg.Business.Cutoff, err = getclock("ORDER_CUTOFF", 12*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.Broadcast.At, err = getclock("BROADCAST_AT", 6*time.Hour+30*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.Broadcast.Days, err = getweekdays("BROADCAST_DAYS", "mon,tue,wed,thu,fri"); err != nil {
		return cfg, err
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.Store.SpreadsheetID == "" {
		return cfg, errors.New("SPREADSHEET_ID must be set")
	}
	if strings.TrimSpace(cfg.Store.Credentials) == "" {
		return cfg, errors.New("STORE_CREDS_JSON must be set")
	}
	if cfg.Telegram.WebhookURL != "" && !strings.HasPrefix(cfg.Telegram.WebhookURL, "https://") {
		return cfg, errors.New("WEBHOOK_URL must start with https://")
	}
	if cfg.Broadcast.RPS <= 0 {
		return cfg, errors.New("BROADCAST_RPS must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.UpdateDedupTTL <= 0 {
		return cfg, errors.New("UPDATE_DEDUP_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// RequireBot reports whether the Telegram credentials needed to talk to
// users are present. Commands that only touch the store skip this check.
func (c Config) RequireBot() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// Polling reports whether updates are fetched by long polling.
func (c Config) Polling() bool { return c.Telegram.WebhookURL == "" }

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getclock reads an HH:MM time of day as an offset from midnight. Unlike the
// numeric helpers a malformed value is an error, not a silent default.
func getclock(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(k, ""))
	if v == "" {
		return def, nil
	}
	d, err := parseClock(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func getlocation(k string) (*time.Location, error) {
	v := strings.TrimSpace(getenv(k, ""))
	if v == "" || strings.EqualFold(v, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return loc, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func getweekdays(k, def string) ([]time.Weekday, error) {
	parts := splitCSV(getenv(k, def))
	if len(parts) == 0 {
		return nil, fmt.Errorf("%s must list at least one day", k)
	}
	out := make([]time.Weekday, 0, len(parts))
	seen := make(map[time.Weekday]bool, len(parts))
	for _, p := range parts {
		name := strings.ToLower(p)
		if len(name) > 3 {
			name = name[:3]
		}
		d, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("%s: unknown day %q", k, p)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
