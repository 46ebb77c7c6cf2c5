package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/repository"
	"github.com/fxgate/fxgate/internal/service"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

const apiKeyContextKey contextKey = "api_key"

// CallerResolver looks up active users by API key.
type CallerResolver interface {
	GetUserByAPIKey(ctx context.Context, key string) (*model.User, error)
}

// ResolveCaller attaches the user owning the X-API-Key header to the request
// context. Missing or unknown keys leave the request anonymous; rejecting them
// is RequireCaller's job, so rate limits still apply to such requests.
func ResolveCaller(store CallerResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, key)

			user, err := store.GetUserByAPIKey(ctx, key)
			switch {
			case err == nil:
				ctx = auth.ContextWithCaller(ctx, user)
			case errors.Is(err, repository.ErrUserNotFound):
				logger.Warn("authentication failed",
					slog.String("reason", "unknown_key"),
					slog.String("key_hint", auth.KeyHint(key)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(ctx)),
				)
			default:
				logger.Error("api key lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(ctx)),
				)
				writeClassified(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCaller rejects requests that ResolveCaller left anonymous.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.CallerFromContext(r.Context()) == nil {
			writeClassified(w, service.ErrInvalidAPIKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetAPIKey returns the raw API key sent with the request, if any.
func GetAPIKey(ctx context.Context) string {
	if key, ok := ctx.Value(apiKeyContextKey).(string); ok {
		return key
	}
	return ""
}
