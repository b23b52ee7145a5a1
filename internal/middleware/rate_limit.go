package middleware

import (
	"encoding/json"
	"net/http"

	"child-development-records/internal/platform/logger"
	"child-development-records/internal/platform/ratelimit"
)

// RateLimit limita por usuario autenticado (o IP si no hay claims).
// Si el limiter falla, el request pasa y se loguea warn.
func RateLimit(l ratelimit.Limiter, scope string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":ip:" + clientIP(r)
			if c, ok := GetClaims(r.Context()); ok && c.UserID != "" {
				key = scope + ":user:" + c.UserID
			}

			allowed, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable", map[string]any{"scope": scope, "error": err.Error()})
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "RATE_LIMITED",
					"message": ratelimit.ErrLimited.Error(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// chi middleware.RealIP ya reescribe RemoteAddr desde X-Forwarded-For / X-Real-IP.
	return r.RemoteAddr
}
