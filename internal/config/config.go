// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the SQLite path, the Telegram bot connection, the registration
// probe, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "gitlab-telegram-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig holds the bot connection settings.
type TelegramConfig struct {
	Token       string        // TG_TOKEN, required for serve
	APIBase     string        // TG_API_BASE, no trailing slash
	PollTimeout time.Duration // TG_POLL_TIMEOUT, getUpdates long-poll window
	SendRPS     float64       // TG_SEND_RPS, outbound messages per second
	SendBurst   int           // TG_SEND_BURST
	Greeting    string        // TG_GREETING, startup broadcast text; empty disables
}

// ProbeConfig controls the registration reachability check.
type ProbeConfig struct {
	Timeout time.Duration // PROBE_TIMEOUT
	Marker  string        // PROBE_MARKER
}

// WebhookConfig controls inbound GitLab deliveries.
type WebhookConfig struct {
	DedupeTTL     time.Duration // WEBHOOK_DEDUPE_TTL, 0 disables retry dedupe
	MaxBodyBytes  int64         // WEBHOOK_MAX_BODY_BYTES
	RegisterRPS   float64       // REGISTER_RPS, per client IP
	RegisterBurst int           // REGISTER_BURST
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful drain window
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	// App
	DBPath        string // SQLite path
	PublicBaseURL string // origin GitLab reaches us at; empty derives it per request

	Telegram TelegramConfig
	Probe    ProbeConfig
	Webhook  WebhookConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
//
// TG_TOKEN is not checked here: the migrate command runs without it. Call
// RequireTelegram before starting the bot.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		// App
		DBPath:        getenv("DB_PATH", "data.db"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_BASE_URL", "")), "/"),

		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(getenv("TG_TOKEN", "")),
			APIBase:     strings.TrimRight(getenv("TG_API_BASE", "https://api.telegram.org"), "/"),
			PollTimeout: getdur("TG_POLL_TIMEOUT", 30*time.Second),
			SendRPS:     getfloat("TG_SEND_RPS", 25),
			SendBurst:   getint("TG_SEND_BURST", 5),
			Greeting:    getenv("TG_GREETING", "I'm back online."),
		},
		Probe: ProbeConfig{
			Timeout: getdur("PROBE_TIMEOUT", 10*time.Second),
			Marker:  getenv("PROBE_MARKER", "GitLab"),
		},
		Webhook: WebhookConfig{
			DedupeTTL:     getdur("WEBHOOK_DEDUPE_TTL", 24*time.Hour),
			MaxBodyBytes:  int64(getint("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
			RegisterRPS:   getfloat("REGISTER_RPS", 0.2),
			RegisterBurst: getint("REGISTER_BURST", 3),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "gitlab-telegram-bot"),
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
	if cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.PublicBaseURL != "" &&
		!strings.HasPrefix(cfg.PublicBaseURL, "http://") && !strings.HasPrefix(cfg.PublicBaseURL, "https://") {
		return cfg, errors.New("PUBLIC_BASE_URL must start with http:// or https://")
	}
	if cfg.Telegram.PollTimeout < 0 {
		return cfg, errors.New("TG_POLL_TIMEOUT must be >= 0")
	}
	if cfg.Telegram.SendRPS < 0 {
		return cfg, errors.New("TG_SEND_RPS must be >= 0")
	}
	if cfg.Telegram.SendBurst < 1 {
		return cfg, errors.New("TG_SEND_BURST must be >= 1")
	}
	if cfg.Probe.Timeout <= 0 {
		return cfg, errors.New("PROBE_TIMEOUT must be > 0")
	}
	if cfg.Webhook.DedupeTTL < 0 {
		return cfg, errors.New("WEBHOOK_DEDUPE_TTL must be >= 0")
	}
	if cfg.Webhook.MaxBodyBytes <= 0 {
		return cfg, errors.New("WEBHOOK_MAX_BODY_BYTES must be > 0")
	}
	if cfg.Webhook.RegisterRPS <= 0 || cfg.Webhook.RegisterBurst < 1 {
		return cfg, errors.New("REGISTER_RPS must be > 0 and REGISTER_BURST >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// RequireTelegram reports an error when the bot token is missing.
func (c Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return errors.New("TG_TOKEN must be set")
	}
	return nil
}

// ---- helpers (no external deps) ----

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
