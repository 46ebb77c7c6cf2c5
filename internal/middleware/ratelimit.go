package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/fxgate/fxgate/internal/admission"
	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/ratelimit"
)

// RateLimit counts each request against all policies at once and answers 429
// when any of them is spent. A rejected request uses no slot in any policy.
// It must run after ResolveCaller.
func RateLimit(ctrl *admission.Controller, logger *slog.Logger, policies ...admission.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := admission.RateSubject{
				APIKey:     GetAPIKey(r.Context()),
				RemoteAddr: clientIP(r),
				Caller:     auth.CallerFromContext(r.Context()),
			}

			result, err := ctrl.CheckRates(r.Context(), policies, subject)

			var limited *admission.RateLimitedError
			switch {
			case errors.As(err, &limited):
				setRateLimitHeaders(w, result)
				w.Header().Set("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())))
				writeClassified(w, err)
				return
			case err != nil:
				logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeClassified(w, err)
				return
			}

			setRateLimitHeaders(w, result)
			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders reports the tightest quota of the request.
func setRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	if res.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// clientIP strips the port from RemoteAddr. Proxy headers are handled by
// chi's RealIP ahead of this middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
