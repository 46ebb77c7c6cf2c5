// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// optionally seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/ratelimit"
)

// Rate limiter backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	AppPort   int    `env:"APP_PORT" envDefault:"8080"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api/v1"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Bearer tokens
	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	// Upstream exchange-rate provider
	ExchangeAPIKey     string        `env:"EXCHANGE_API_KEY,required,notEmpty"`
	ExchangeAPIBaseURL string        `env:"EXCHANGE_API_BASE_URL" envDefault:"https://v6.exchangerate-api.com/v6/"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	CurrencyCacheTTL   time.Duration `env:"CURRENCY_CACHE_TTL" envDefault:"1h"`

	// Rate limiting
	RateLimitBackend     string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitCurrencies  string `env:"RATE_LIMIT_CURRENCIES" envDefault:"1000/day"`
	RateLimitConvert     string `env:"RATE_LIMIT_CONVERT" envDefault:"5/minute"`
	RateLimitHistorical  string `env:"RATE_LIMIT_HISTORICAL" envDefault:"5/minute"`
	RateLimitAnonymous   string `env:"RATE_LIMIT_ANONYMOUS" envDefault:"10/minute"`
	RateLimitPlanEnabled bool   `env:"RATE_LIMIT_PLAN_ENABLED" envDefault:"true"`

	// Credit costs per operation
	CreditsPerConversion int `env:"CREDITS_PER_CONVERSION" envDefault:"1"`
	CreditsPerHistorical int `env:"CREDITS_PER_HISTORICAL" envDefault:"1"`

	// Plans seeded into an empty database: "name:rate_limit:initial_credits,..."
	PlanSeeds string `env:"PLAN_SEEDS" envDefault:""`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Rates holds the parsed per-route quotas.
type Rates struct {
	Currencies ratelimit.Rate
	Convert    ratelimit.Rate
	Historical ratelimit.Rate
	Anonymous  ratelimit.Rate
}

// Rates parses the rate limit strings.
func (c *Config) Rates() (Rates, error) {
	var r Rates
	var err error
	if r.Currencies, err = ratelimit.ParseRate(c.RateLimitCurrencies); err != nil {
		return Rates{}, fmt.Errorf("RATE_LIMIT_CURRENCIES: %w", err)
	}
	if r.Convert, err = ratelimit.ParseRate(c.RateLimitConvert); err != nil {
		return Rates{}, fmt.Errorf("RATE_LIMIT_CONVERT: %w", err)
	}
	if r.Historical, err = ratelimit.ParseRate(c.RateLimitHistorical); err != nil {
		return Rates{}, fmt.Errorf("RATE_LIMIT_HISTORICAL: %w", err)
	}
	if r.Anonymous, err = ratelimit.ParseRate(c.RateLimitAnonymous); err != nil {
		return Rates{}, fmt.Errorf("RATE_LIMIT_ANONYMOUS: %w", err)
	}
	return r, nil
}

// Plans returns the plans to seed.
func (c *Config) Plans() ([]model.Plan, error) {
	plans, err := model.ParsePlanSeeds(c.PlanSeeds)
	if err != nil {
		return nil, fmt.Errorf("PLAN_SEEDS: %w", err)
	}
	return plans, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Rates(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Plans(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimitBackend != BackendMemory && c.RateLimitBackend != BackendRedis {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.RateLimitBackend))
	}
	if c.CreditsPerConversion < 0 {
		errs = append(errs, errors.New("CREDITS_PER_CONVERSION must not be negative"))
	}
	if c.CreditsPerHistorical < 0 {
		errs = append(errs, errors.New("CREDITS_PER_HISTORICAL must not be negative"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("API_PREFIX must start with '/', got %q", c.APIPrefix))
	}

	return errors.Join(errs...)
}

// Load reads an optional .env file, parses environment variables and validates the result.
// Variables already set in the environment take precedence over the file.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
