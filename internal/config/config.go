// Package config loads the wish wall settings from the environment.
//
// Every setting has a default, so an empty environment yields a usable
// development server on SQLite. Values that fail to parse fall back to their
// default; values that parse but make no sense fail Load, which reports all
// such problems at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultEventDate is the countdown target when EVENT_DATE is unset.
const DefaultEventDate = "2025-06-16T10:30:00+05:30"

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma separated; empty allows any
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT (e.g. "production")
}

// EventConfig describes the celebration the wall counts down to.
type EventConfig struct {
	Name string    // EVENT_NAME, used in the thank-you mail
	Date time.Time // EVENT_DATE, RFC 3339
}

// MailerConfig drives the notification dispatcher and its SMTP relay.
type MailerConfig struct {
	Enabled  bool   // MAILER_ENABLED
	Schedule string // MAILER_SCHEDULE, standard cron spec or @every
	Batch    int    // MAILER_BATCH, jobs per tick

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Store
	DBDriver              string // sqlite|postgres
	DBPath                string // SQLite path
	DBDSN                 string // Postgres DSN
	StrictEmailUniqueness bool   // derive wish ids from the normalized email
	// DBPollInterval re-checks the wish table for writes made by other
	// instances. Zero disables it, which suits a single instance.
	DBPollInterval time.Duration

	// Submissions
	Event           EventConfig
	MaxAuthorRunes  int // 0 disables
	MaxMessageRunes int // 0 disables
	IdempotencyTTL  time.Duration

	CORS     CORSConfig
	Security SecurityConfig
	Mailer   MailerConfig
	OTEL     OTELConfig
}

// MustLoad is Load for callers that cannot continue without configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads, normalizes and validates the configuration.
func Load() (Config, error) {
	cfg := Config{
		Port:              env("PORT", "8080"),
		ReadTimeout:       lookup("READ_TIMEOUT", 15*time.Second, time.ParseDuration),
		ReadHeaderTimeout: lookup("READ_HEADER_TIMEOUT", 10*time.Second, time.ParseDuration),
		WriteTimeout:      lookup("WRITE_TIMEOUT", 20*time.Second, time.ParseDuration),
		IdleTimeout:       lookup("IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
		MaxHeaderBytes:    lookup("MAX_HEADER_BYTES", 1<<20, strconv.Atoi),
		GinMode:           oneOf(strings.ToLower(env("GIN_MODE", "release")), "release", "debug", "test"),

		LogLevel:       strings.ToLower(env("LOG_LEVEL", "info")),
		LogPretty:      lookup("LOG_PRETTY", false, parseBool),
		SwaggerEnabled: lookup("SWAGGER_ENABLED", false, parseBool),
		APIBasePath:    normalizeBasePath(env("API_BASE_PATH", "/api/v1")),

		DBDriver:              strings.ToLower(strings.TrimSpace(env("DB_DRIVER", "sqlite"))),
		DBPath:                env("DB_PATH", "wishwall.db"),
		DBDSN:                 env("DB_DSN", ""),
		StrictEmailUniqueness: lookup("STRICT_EMAIL_UNIQUENESS", false, parseBool),
		DBPollInterval:        lookup("DB_POLL_INTERVAL", time.Duration(0), time.ParseDuration),

		Event:           EventConfig{Name: env("EVENT_NAME", "our celebration")},
		MaxAuthorRunes:  lookup("MAX_AUTHOR_RUNES", 100, strconv.Atoi),
		MaxMessageRunes: lookup("MAX_MESSAGE_RUNES", 2000, strconv.Atoi),
		IdempotencyTTL:  lookup("IDEMPOTENCY_TTL", 24*time.Hour, time.ParseDuration),

		CORS: CORSConfig{AllowedOrigins: splitCSV(env("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: lookup("ENABLE_HSTS", false, parseBool),
			HSTSMaxAge: lookup("HSTS_MAX_AGE", 180*24*time.Hour, time.ParseDuration),
		},
		Mailer: MailerConfig{
			Enabled:      lookup("MAILER_ENABLED", false, parseBool),
			Schedule:     env("MAILER_SCHEDULE", "@every 30s"),
			Batch:        lookup("MAILER_BATCH", 20, strconv.Atoi),
			SMTPHost:     env("SMTP_HOST", ""),
			SMTPPort:     lookup("SMTP_PORT", 587, strconv.Atoi),
			SMTPUser:     env("SMTP_USER", ""),
			SMTPPassword: env("SMTP_PASSWORD", ""),
			SMTPFrom:     env("SMTP_FROM", ""),
		},
		OTEL: OTELConfig{
			Enabled:     lookup("OTEL_ENABLED", false, parseBool),
			Endpoint:    env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    lookup("OTEL_EXPORTER_OTLP_INSECURE", true, parseBool),
			ServiceName: env("OTEL_SERVICE_NAME", "go-wishwall-backend"),
			SampleRatio: lookup("OTEL_TRACES_SAMPLER_ARG", 1.0, parseFloat),
			Environment: env("OTEL_DEPLOYMENT_ENVIRONMENT", "development"),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	var errs []error
	if date, err := time.Parse(time.RFC3339, env("EVENT_DATE", DefaultEventDate)); err != nil {
		errs = append(errs, fmt.Errorf("EVENT_DATE must be RFC 3339: %w", err))
	} else {
		cfg.Event.Date = date
	}
	errs = append(errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DBDSN) != "", "DB_DSN is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}

	check(c.DBPollInterval >= 0, "DB_POLL_INTERVAL must be >= 0")
	check(c.MaxAuthorRunes >= 0 && c.MaxMessageRunes >= 0, "MAX_AUTHOR_RUNES and MAX_MESSAGE_RUNES must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return append(errs, c.Mailer.validate()...)
}

// validate checks the mailer only when it is enabled.
func (m MailerConfig) validate() []error {
	if !m.Enabled {
		return nil
	}
	var errs []error
	if _, err := cron.ParseStandard(m.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("MAILER_SCHEDULE is not a valid cron spec: %w", err))
	}
	if m.Batch < 1 {
		errs = append(errs, errors.New("MAILER_BATCH must be >= 1"))
	}
	if strings.TrimSpace(m.SMTPHost) == "" || strings.TrimSpace(m.SMTPFrom) == "" {
		errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM are required when MAILER_ENABLED"))
	}
	if m.SMTPPort < 1 || m.SMTPPort > 65535 {
		errs = append(errs, errors.New("SMTP_PORT must be in [1,65535]"))
	}
	return errs
}

// DBTarget returns the path or DSN matching DBDriver.
func (c Config) DBTarget() string {
	if c.DBDriver == "postgres" {
		return c.DBDSN
	}
	return c.DBPath
}

// env returns the value of k, or def when k is unset or empty.
func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// lookup parses k with parse, falling back to def when k is unset, empty or
// malformed.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	out, err := parse(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return out
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// parseBool accepts the usual spellings of on and off, case-insensitively.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// oneOf returns v when it is allowed, else the first allowed value.
func oneOf(v string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return allowed[0]
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash.
// Empty input is the root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
