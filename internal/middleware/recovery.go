package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/fxgate/fxgate/internal/service"
)

// Recoverer stops a handler panic from killing the connection silently: the
// panic and its stack are logged under the request ID and the caller gets the
// INTERNAL_ERROR envelope. http.ErrAbortHandler is passed through so net/http
// can abort the response as intended.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				logger.Error("handler panicked",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, service.CodeInternal, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
