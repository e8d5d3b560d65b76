package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/quickserve/pos-order/internal/service/models/identity"
)

// Limiter is the sliding-failure-window limiter consulted at the transport
// boundary, before and after every mutating call.
type Limiter interface {
	IsBlocked(ctx context.Context, key string) bool
	RegisterFailure(ctx context.Context, key string, limit int64, window, blockDuration time.Duration) int64
	Reset(ctx context.Context, key string)
}

// Config bounds the failure window and the lockout per caller+endpoint key.
type Config struct {
	Limit         int64
	Window        time.Duration
	BlockDuration time.Duration
}

// NewRateLimitMiddleware guards mutating endpoints: a blocked key is
// rejected up front; after the handler runs, a failed response registers a
// failure and a successful one resets the key. The limiter itself fails
// open, so an unreachable backend never rejects a request.
func NewRateLimitMiddleware(limiter Limiter, cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if limiter.IsBlocked(r.Context(), key) {
				http.Error(w, "too many failed requests, try again later", http.StatusTooManyRequests)

				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusBadRequest {
				limiter.RegisterFailure(r.Context(), key, cfg.Limit, cfg.Window, cfg.BlockDuration)
			} else {
				limiter.Reset(r.Context(), key)
			}
		})
	}
}

// clientKey partitions the limiter per caller and endpoint. Anonymous
// callers fall back to the remote address.
func clientKey(r *http.Request) string {
	caller := r.RemoteAddr
	if id, err := identity.FromContext(r.Context()); err == nil {
		caller = fmt.Sprintf("actor:%d", id.ActorID)
	}

	return fmt.Sprintf("%s:%s %s", caller, r.Method, r.URL.Path)
}
