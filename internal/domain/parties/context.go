package parties

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"child-development-records/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type ctxKey string

const profileKey ctxKey = "party_profile"

// RequireProfile resuelve una sola vez, en el borde HTTP, la identidad por rol
// del caller a partir de los claims y del parámetro {role} de la ruta.
// Los handlers de abajo trabajan solo con Party, nunca con el user id crudo.
func RequireProfile(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := middleware.GetClaims(r.Context())
			if !ok || strings.TrimSpace(claims.UserID) == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			role, ok := ParseRole(chi.URLParam(r, "role"))
			if !ok {
				http.Error(w, "unknown role", http.StatusNotFound)
				return
			}

			p, err := svc.Resolve(r.Context(), claims, role)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					http.Error(w, "no "+string(role)+" profile for caller", http.StatusForbidden)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), p)))
		})
	}
}

func WithProfile(ctx context.Context, p Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

func FromContext(ctx context.Context) (Profile, bool) {
	p, ok := ctx.Value(profileKey).(Profile)
	return p, ok
}
