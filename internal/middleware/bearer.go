package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/service"
)

// TokenAuthenticator resolves a bearer token to its user.
type TokenAuthenticator interface {
	CurrentUser(ctx context.Context, token string) (*model.User, error)
}

// RequireBearer authenticates "Authorization: Bearer <token>" and stores the
// user as the request's caller.
func RequireBearer(tokens TokenAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeClassified(w, service.ErrInvalidToken)
				return
			}

			user, err := tokens.CurrentUser(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidToken) {
					logger.Error("token lookup failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeClassified(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithCaller(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
