package children

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes cuelga las rutas bajo un router montado en /as/{role}.
func RegisterRoutes(r chi.Router, svc *Service, authz Authorizer) {
	r.Route("/children", func(cr chi.Router) {
		cr.Post("/", createChildHandler(svc))
		cr.Get("/", listChildrenHandler(svc, authz))

		// Perfil (relación direct o grant con view_demographics)
		cr.Get("/{childID}", getChildHandler(svc, authz))

		// Actualizar: direct cualquier campo; grant edit con edit_notes solo notes
		cr.Patch("/{childID}", updateChildHandler(svc, authz))
	})
}

type createChildRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD opcional
	Notes     string `json:"notes"`
}

type childResponse struct {
	ID        string        `json:"id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	BirthDate *time.Time    `json:"birth_date,omitempty"`
	Notes     string        `json:"notes"`
	CreatedBy parties.Party `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type visibleChildResponse struct {
	Child   childResponse      `json:"child"`
	Access  relationships.Kind `json:"access"`
	GrantID string             `json:"grant_id,omitempty"`
}

// childNotesResponse es lo que ve un grantee sin view_demographics tras editar notas.
type childNotesResponse struct {
	ID        string    `json:"id"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
}

type updateChildRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Notes     *string `json:"notes"`
}

// createChildHandler godoc
// @Summary Registrar niño
// @Description Crea el registro y una relación directa para el perfil que lo crea.
// @Tags children
// @Accept json
// @Produce json
// @Param role path string true "parent|clinician"
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param payload body createChildRequest true "first_name requerido; birth_date YYYY-MM-DD"
// @Success 201 {object} childResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Router /as/{role}/children [post]
func createChildHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createChildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var bd *time.Time
		if strings.TrimSpace(req.BirthDate) != "" {
			t, err := time.Parse("2006-01-02", req.BirthDate)
			if err != nil {
				http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			bd = &t
		}

		c, err := svc.Create(r.Context(), caller.Party, CreateInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			BirthDate: bd,
			Notes:     req.Notes,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toChildResponse(c))
	}
}

// listChildrenHandler godoc
// @Summary Niños visibles para el caller
// @Description Relaciones directas y grants vigentes con view_demographics.
// @Tags children
// @Produce json
// @Param role path string true "parent|clinician"
// @Success 200 {array} visibleChildResponse
// @Router /as/{role}/children [get]
func listChildrenHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListVisible(r.Context(), caller.Party, authz)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]visibleChildResponse, 0, len(items))
		for _, v := range items {
			out = append(out, visibleChildResponse{
				Child:   toChildResponse(v.Child),
				Access:  v.Kind,
				GrantID: v.GrantID,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getChildHandler godoc
// @Summary Perfil de un niño
// @Tags children
// @Produce json
// @Param role path string true "parent|clinician"
// @Param childID path string true "ID del niño"
// @Success 200 {object} childResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "child not found"
// @Router /as/{role}/children/{childID} [get]
func getChildHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		childID := chi.URLParam(r, "childID")
		if !authorize(w, r, authz, caller.Party, childID, accessgrants.CapViewDemographics) {
			return
		}

		c, err := svc.GetByID(r.Context(), childID)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toChildResponse(c))
	}
}

// updateChildHandler godoc
// @Summary Actualizar un niño
// @Tags children
// @Accept json
// @Produce json
// @Param role path string true "parent|clinician"
// @Param childID path string true "ID del niño"
// @Description Con relación direct se puede cambiar cualquier campo. Un grant edit con edit_notes solo puede cambiar notes; la respuesta completa exige además view_demographics.
// @Param payload body updateChildRequest true "campos a cambiar; birth_date admite null"
// @Success 200 {object} childResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "child not found"
// @Router /as/{role}/children/{childID} [patch]
func updateChildHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		childID := chi.URLParam(r, "childID")
		grantID, ok := authorizeGrant(w, r, authz, caller.Party, childID, accessgrants.CapEditNotes)
		if !ok {
			return
		}

		// Se decodifica a map para distinguir "birth_date": null de "no enviado".
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var req updateChildRequest
		b, _ := json.Marshal(raw)
		if err := json.Unmarshal(b, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := UpdateInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Notes:     req.Notes,
		}
		if v, exists := raw["birth_date"]; exists {
			in.BirthDateSet = true
			if string(v) != "null" {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					http.Error(w, "birth_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				t, err := time.Parse("2006-01-02", s)
				if err != nil {
					http.Error(w, "birth_date must be YYYY-MM-DD or null", http.StatusBadRequest)
					return
				}
				in.BirthDate = &t
			}
		}

		viaGrant := grantID != ""
		if viaGrant && in.TouchesDemographics() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		updated, err := svc.Update(r.Context(), childID, in)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeLookupError(w, err)
			return
		}

		if viaGrant {
			if _, err := authz.Check(r.Context(), caller.Party, childID, accessgrants.CapViewDemographics); err != nil {
				if !errors.Is(err, accessgrants.ErrAccessDenied) {
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				writeJSON(w, http.StatusOK, childNotesResponse{
					ID:        updated.ID,
					Notes:     updated.Notes,
					UpdatedAt: updated.UpdatedAt,
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, toChildResponse(updated))
	}
}

// authorize escribe 403 si el caller no tiene la capability sobre el niño.
// Va antes del lookup para no revelar si el id existe.
func authorize(w http.ResponseWriter, r *http.Request, authz Authorizer, p parties.Party, childID string, c accessgrants.Capability) bool {
	_, ok := authorizeGrant(w, r, authz, p, childID, c)
	return ok
}

// authorizeGrant es authorize devolviendo además el grant usado ("" si es direct).
func authorizeGrant(w http.ResponseWriter, r *http.Request, authz Authorizer, p parties.Party, childID string, c accessgrants.Capability) (string, bool) {
	grantID, err := authz.Check(r.Context(), p, childID, c)
	if err == nil {
		return grantID, true
	}
	if errors.Is(err, accessgrants.ErrAccessDenied) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
	return "", false
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "child not found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func toChildResponse(c Child) childResponse {
	return childResponse{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		BirthDate: c.BirthDate,
		Notes:     c.Notes,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
