package parties

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"child-development-records/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/me/profiles", func(pr chi.Router) {
		pr.Post("/", registerProfileHandler(svc))
		pr.Get("/", listMyProfilesHandler(svc))
	})
}

type registerProfileRequest struct {
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type profileResponse struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// registerProfileHandler godoc
// @Summary Registrar perfil por rol
// @Description Crea el perfil de padre o clínico del usuario autenticado. El email se toma de la identidad autenticada. Los grants siempre referencian este id de perfil.
// @Tags profiles
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param payload body registerProfileRequest true "role: parent|clinician"
// @Success 201 {object} profileResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Failure 409 {string} string "profile already exists"
// @Router /me/profiles [post]
func registerProfileHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req registerProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		role, ok := ParseRole(req.Role)
		if !ok {
			http.Error(w, "role must be parent or clinician", http.StatusBadRequest)
			return
		}

		p, err := svc.Register(r.Context(), claims, RegisterInput{
			Role:        role,
			DisplayName: req.DisplayName,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrProfileExists):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toProfileResponse(p))
	}
}

func listMyProfilesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByUser(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]profileResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toProfileResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toProfileResponse(p Profile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		CreatedAt:   p.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
