// File: internal/middleware/auth.go
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/auth"
)

// NewJWTMiddleware validates the session token from the Authorization header
// or the auth_token cookie and puts the principal on the request context.
// Unauthenticated requests get a 401 JSON error before any handler runs.
func NewJWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := tokenFromRequest(r)
			if token == "" {
				unauthorized(w)
				return
			}

			principal, err := auth.ValidateToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("[AuthMiddleware] invalid token")
				if fromCookie {
					http.SetCookie(w, &http.Cookie{
						Name:     AuthCookieName,
						Value:    "",
						Path:     "/",
						Expires:  time.Unix(0, 0),
						HttpOnly: true,
						Secure:   true,
						SameSite: http.SameSiteLaxMode,
					})
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func tokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, value, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value, true
	}
	return "", false
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
