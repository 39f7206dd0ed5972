// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// Decision service (OpenAI-compatible chat completions)
	CompletionAPIKey  string        `env:"COMPLETION_API_KEY"`
	CompletionBaseURL string        `env:"COMPLETION_BASE_URL" envDefault:"https://api.openai.com/v1"`
	CompletionModel   string        `env:"COMPLETION_MODEL" envDefault:"gpt-4o-mini"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"45s"`
	DecisionMaxTokens int           `env:"DECISION_MAX_TOKENS" envDefault:"1024"`

	// CRM API (lead lookup and activity write-back)
	CRMAPIBase      string        `env:"CRM_API_BASE"`
	CRMAccessKey    string        `env:"CRM_ACCESS_KEY"`
	CRMSecretKey    string        `env:"CRM_SECRET_KEY"`
	CRMTimeout      time.Duration `env:"CRM_TIMEOUT" envDefault:"15s"`
	CRMWritebackOn  bool          `env:"CRM_WRITEBACK_ENABLED" envDefault:"true"`

	// Dedup cache
	DedupTTL           time.Duration `env:"DEDUP_TTL" envDefault:"5m"`
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"1m"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`

	// Optional decision audit log
	DBURL             string        `env:"DB_URL"`
	DataRetentionDays int           `env:"DATA_RETENTION_DAYS" envDefault:"90"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`

	// Optional decision event publishing
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Policy file (actionability labels/codes, exemption set, prompt override)
	PolicyFile string `env:"POLICY_FILE"`

	// Observability
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"intake-qa-agent"`

	// HTTP server
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// Backoff for outbound calls (decision service, CRM)
	BackoffMaxElapsedTime  time.Duration `env:"BACKOFF_MAX_ELAPSED_TIME" envDefault:"30s"`
	BackoffInitialInterval time.Duration `env:"BACKOFF_INITIAL_INTERVAL" envDefault:"1s"`
	BackoffMaxInterval     time.Duration `env:"BACKOFF_MAX_INTERVAL" envDefault:"10s"`
	BackoffMultiplier      float64       `env:"BACKOFF_MULTIPLIER" envDefault:"2.0"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// CRMEnabled reports whether CRM calls can be made at all.
func (c Config) CRMEnabled() bool {
	return c.CRMAPIBase != "" && c.CRMAccessKey != "" && c.CRMSecretKey != ""
}

// AuditEnabled reports whether the Postgres decision audit log is configured.
func (c Config) AuditEnabled() bool { return c.DBURL != "" }

// EventsEnabled reports whether decision event publishing is configured.
func (c Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

// GetBackoffConfig returns backoff settings for outbound calls. Test runs use
// much shorter intervals so failures resolve quickly.
func (c Config) GetBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 50 * time.Millisecond, 500 * time.Millisecond, 2.0
	}
	return c.BackoffMaxElapsedTime, c.BackoffInitialInterval, c.BackoffMaxInterval, c.BackoffMultiplier
}
