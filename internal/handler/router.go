package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fxgate/fxgate/internal/admission"
	"github.com/fxgate/fxgate/internal/middleware"
)

// Policies are the rate limits applied per route.
type Policies struct {
	Currencies admission.Policy
	Convert    admission.Policy
	Historical admission.Policy
	// Plan, when set, is checked together with the fixed policy of both
	// paid routes and takes its limit from the caller's plan.
	Plan *admission.Policy
}

// RouterConfig wires handlers and middleware into a router.
type RouterConfig struct {
	Logger        *slog.Logger
	APIPrefix     string
	IsDevelopment bool
	MaxBodySize   int64
	CORS          middleware.CORSConfig

	Root     *Handler
	Health   *HealthHandler
	Metrics  *MetricsHandler
	Auth     *AuthHandler
	Currency *CurrencyHandler

	Callers   middleware.CallerResolver
	Tokens    middleware.TokenAuthenticator
	Admission *admission.Controller
	Policies  Policies
}

// NewRouter builds the HTTP router. API routes are served at the root and
// again under APIPrefix.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.IsDevelopment))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	r.Get("/", cfg.Root.Root)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", cfg.Metrics.Metrics)

	api := func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", cfg.Auth.Signup)
			r.Post("/login", cfg.Auth.Login)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireBearer(cfg.Tokens, cfg.Logger))
				r.Use(middleware.TagCaller)
				r.Get("/me", cfg.Auth.Me)
				r.Get("/me/requests", cfg.Auth.MyRequests)
			})
		})

		r.Route("/currency", func(r chi.Router) {
			r.Use(middleware.ResolveCaller(cfg.Callers, cfg.Logger))
			r.Use(middleware.TagCaller)

			r.With(cfg.limits(cfg.Policies.Currencies)).
				With(middleware.RequireCaller).
				Get("/currencies", cfg.Currency.Currencies)
			r.With(cfg.limits(cfg.Policies.Convert, cfg.Policies.Plan)).
				With(middleware.RequireCaller).
				Get("/convert", cfg.Currency.Convert)
			r.With(cfg.limits(cfg.Policies.Historical, cfg.Policies.Plan)).
				With(middleware.RequireCaller).
				Get("/convert/historical", cfg.Currency.Historical)
		})
	}

	r.Group(api)
	if cfg.APIPrefix != "" && cfg.APIPrefix != "/" {
		r.Route(cfg.APIPrefix, api)
	}

	r.NotFound(cfg.Root.NotFound)
	r.MethodNotAllowed(cfg.Root.MethodNotAllowed)

	return r
}

// limits applies the fixed policy and, when set, the plan policy as one
// check, so a request rejected by either uses no slot in the other.
func (cfg RouterConfig) limits(fixed admission.Policy, plan ...*admission.Policy) func(http.Handler) http.Handler {
	policies := []admission.Policy{fixed}
	for _, p := range plan {
		if p != nil {
			policies = append(policies, *p)
		}
	}
	return middleware.RateLimit(cfg.Admission, cfg.Logger, policies...)
}
