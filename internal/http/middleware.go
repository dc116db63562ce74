package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/cleanbook/internal/application"
	"github.com/example/cleanbook/internal/logging"
)

// APIKeyAuthenticator resolves a presented API key to the tenant it
// belongs to.
type APIKeyAuthenticator interface {
	Authenticate(ctx context.Context, apiKey string) (application.BusinessAccount, error)
}

// RequireAPIKey guards handlers behind tenant authentication. The
// resolved business is attached to the request context.
func RequireAPIKey(authenticator APIKeyAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := extractAPIKey(r)
			if apiKey == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAPIKey)
				return
			}

			business, err := authenticator.Authenticate(r.Context(), apiKey)
			if err != nil {
				if errors.Is(err, application.ErrUnauthorized) {
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: "AUTH_REQUIRED",
						Message:   "the api key is missing or invalid",
					})
				} else {
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "authentication failed"})
				}
				return
			}

			ctx := ContextWithBusiness(r.Context(), business)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// RequestLogger attaches a per-request logger to the context and logs
// request boundaries.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
