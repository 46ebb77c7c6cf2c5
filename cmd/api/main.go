// Package main is the entrypoint for the fxgate API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fxgate/fxgate/internal/admission"
	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/cache"
	"github.com/fxgate/fxgate/internal/config"
	"github.com/fxgate/fxgate/internal/handler"
	"github.com/fxgate/fxgate/internal/metrics"
	"github.com/fxgate/fxgate/internal/middleware"
	"github.com/fxgate/fxgate/internal/ratelimit"
	"github.com/fxgate/fxgate/internal/repository"
	"github.com/fxgate/fxgate/internal/server"
	"github.com/fxgate/fxgate/internal/service"
	"github.com/fxgate/fxgate/internal/upstream"
)

const (
	serviceName   = "fxgate"
	sweepInterval = time.Minute
	startupBudget = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL, cfg.ExchangeAPIKey))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	rates, err := cfg.Rates()
	if err != nil {
		return err
	}
	plans, err := cfg.Plans()
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), startupBudget)
	defer cancel()

	repo, err := repository.New(startCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return fmt.Errorf("connect database: %w", err)
	}
	logger.Info("connected to database")

	if err := repo.Migrate(startCtx); err != nil {
		repo.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	seeded, err := repo.SeedPlans(startCtx, plans)
	if err != nil {
		repo.Close()
		return fmt.Errorf("seed plans: %w", err)
	}
	if seeded > 0 {
		logger.Info("seeded default plans", "count", seeded)
	}

	cacheClient, err := cache.New(startCtx, cfg.RedisURL, logger)
	if err != nil {
		repo.Close()
		logger.Error("failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		limiter = cacheClient
	default:
		mem := ratelimit.NewMemory()
		go mem.Run(sweepCtx, sweepInterval)
		limiter = mem
	}
	logger.Info("rate limiter ready", "backend", cfg.RateLimitBackend)

	ctrl := admission.NewController(admission.Options{
		Limiter: limiter,
		Store:   repo,
		Costs: admission.CostTable{
			admission.OpConvert:    cfg.CreditsPerConversion,
			admission.OpHistorical: cfg.CreditsPerHistorical,
		},
		Anonymous: rates.Anonymous,
		Recorder:  recorder,
		Logger:    logger,
	})

	provider := upstream.New(upstream.Options{
		BaseURL:  cfg.ExchangeAPIBaseURL,
		APIKey:   cfg.ExchangeAPIKey,
		Timeout:  cfg.UpstreamTimeout,
		Logger:   logger,
		Recorder: recorder,
	})

	authSvc := service.NewAuthService(repo,
		auth.NewHasher(auth.DefaultParams),
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		logger)
	convSvc := service.NewConversionService(service.ConversionOptions{
		Provider:  provider,
		Admission: ctrl,
		Logs:      repo,
		Cache:     cacheClient,
		CacheTTL:  cfg.CurrencyCacheTTL,
		Recorder:  recorder,
		Logger:    logger,
	})

	policies := handler.Policies{
		Currencies: admission.Policy{Name: "currencies", Rate: rates.Currencies, Key: admission.KeyRemoteAddr},
		Convert:    admission.Policy{Name: "convert", Rate: rates.Convert, Key: admission.KeyAPIKey},
		Historical: admission.Policy{Name: "historical", Rate: rates.Historical, Key: admission.KeyAPIKey},
	}
	if cfg.RateLimitPlanEnabled {
		policies.Plan = &admission.Policy{Name: "plan", Key: admission.KeyAPIKey, PlanDriven: true}
	}

	router := handler.NewRouter(handler.RouterConfig{
		Logger:        logger,
		APIPrefix:     cfg.APIPrefix,
		IsDevelopment: cfg.IsDevelopment(),
		MaxBodySize:   cfg.MaxRequestBodySize,
		CORS:          middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins()),
		Root:          handler.New(serviceName),
		Health: handler.NewHealthHandler(map[string]handler.HealthChecker{
			"postgres": repo,
			"redis":    cacheClient,
		}, logger),
		Metrics:   handler.NewMetricsHandler(recorder),
		Auth:      handler.NewAuthHandler(authSvc, logger),
		Currency:  handler.NewCurrencyHandler(convSvc, logger),
		Callers:   repo,
		Tokens:    authSvc,
		Admission: ctrl,
		Policies:  policies,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Stopped in reverse order: sweeper, Redis, Postgres.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("limiter-sweeper", func(context.Context) error {
		stopSweep()
		return nil
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"api_prefix", cfg.APIPrefix,
		"upstream", redactURL(cfg.ExchangeAPIBaseURL),
	)

	return srv.Run()
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", serviceName)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces every secret in err's text with its redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" || redacted == secret {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
