// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/metrics"
	"github.com/iyunix/go-chat/internal/ratelimit"
)

// RateLimitMiddleware limits requests per principal, falling back to the
// client IP for anonymous callers. Limiter errors fail open.
func RateLimitMiddleware(limiter ratelimit.Limiter, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := "ip:" + ratelimit.GetClientIP(r)
			if p, ok := PrincipalFrom(r.Context()); ok {
				identifier = "user:" + p.UserID
			}

			info, err := limiter.Allow(r.Context(), name+":"+identifier)
			if err != nil {
				log.Warn().Err(err).Str("limiter", name).Msg("[RateLimit] limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))

			if !info.Allowed {
				log.Info().Str("limiter", name).Str("key", identifier).Msg("[RateLimit] request blocked")
				metrics.Global().RateLimited.WithLabelValues(name).Inc()

				retryAfter := int(info.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "Too many requests. Please try again later.",
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
