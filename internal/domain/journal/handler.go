package journal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/parties"

	"github.com/go-chi/chi/v5"
)

// Authorizer evita depender del servicio de grants concreto.
type Authorizer interface {
	Check(ctx context.Context, party parties.Party, subjectID string, c accessgrants.Capability) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, authz Authorizer) {
	r.Route("/children/{childID}/journal", func(jr chi.Router) {
		jr.Post("/", createEntryHandler(svc, authz))
		jr.Get("/", listEntriesHandler(svc, authz))

		// Anular (relación direct o grant edit con edit_notes)
		jr.Post("/{entryID}/void", voidEntryHandler(svc, authz))
	})
}

type createEntryRequest struct {
	Kind       Kind   `json:"kind" enums:"NOTE,OBSERVATION,MILESTONE,SESSION_SUMMARY"`
	OccurredAt string `json:"occurred_at"` // RFC3339
	Title      string `json:"title"`
	Notes      string `json:"notes"`
}

type entryResponse struct {
	ID         string        `json:"id"`
	ChildID    string        `json:"child_id"`
	Kind       Kind          `json:"kind"`
	OccurredAt time.Time     `json:"occurred_at"`
	RecordedAt time.Time     `json:"recorded_at"`
	Title      string        `json:"title"`
	Notes      string        `json:"notes"`
	Author     parties.Party `json:"author"`
	GrantID    string        `json:"grant_id,omitempty"`
	Status     Status        `json:"status"`
}

// createEntryHandler godoc
// @Summary Crear entrada en el diario del niño
// @Description Relación directa o grant activo de nivel edit con `edit_notes`. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags journal
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param role path string true "parent|clinician"
// @Param childID path string true "ID del niño"
// @Param payload body createEntryRequest true "occurred_at en formato RFC3339"
// @Success 201 {object} entryResponse
// @Failure 400 {string} string "invalid json / occurred_at inválido / reglas de negocio"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /as/{role}/children/{childID}/journal [post]
func createEntryHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		childID := chi.URLParam(r, "childID")
		grantID, ok := authorize(w, r, authz, caller.Party, childID, accessgrants.CapEditNotes)
		if !ok {
			return
		}

		var req createEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			http.Error(w, "occurred_at must be RFC3339", http.StatusBadRequest)
			return
		}

		e, err := svc.Create(r.Context(), childID, caller.Party, CreateInput{
			Kind:       req.Kind,
			OccurredAt: t,
			Title:      req.Title,
			Notes:      req.Notes,
			GrantID:    grantID,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toEntryResponse(e))
	}
}

// listEntriesHandler godoc
// @Summary Listar el diario de un niño
// @Description Relación directa o grant activo con `view_medical`. Permite filtrar por tipos, rango de fechas y texto.
// @Tags journal
// @Produce json
// @Param role path string true "parent|clinician"
// @Param childID path string true "ID del niño"
// @Param limit query int false "Máximo de entradas a devolver (1-200). Por defecto 50"
// @Param kinds query string false "Lista CSV de tipos (ej: NOTE,MILESTONE)"
// @Param from query string false "occurred_at mínimo (RFC3339)"
// @Param to query string false "occurred_at máximo (RFC3339)"
// @Param q query string false "Texto de búsqueda libre en título/notas"
// @Success 200 {array} entryResponse
// @Failure 400 {string} string "Parámetros de filtro inválidos"
// @Failure 403 {string} string "forbidden"
// @Router /as/{role}/children/{childID}/journal [get]
func listEntriesHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		childID := chi.URLParam(r, "childID")
		if _, ok := authorize(w, r, authz, caller.Party, childID, accessgrants.CapViewMedical); !ok {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.ListByChild(r.Context(), childID, filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]entryResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// voidEntryHandler godoc
// @Summary Anular (void) una entrada
// @Description Relación directa: cualquier entrada. Grant edit con `edit_notes`: solo las entradas propias.
// @Tags journal
// @Produce json
// @Param role path string true "parent|clinician"
// @Param childID path string true "ID del niño"
// @Param entryID path string true "ID de la entrada"
// @Success 200 {object} entryResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "entry not found"
// @Router /as/{role}/children/{childID}/journal/{entryID}/void [post]
func voidEntryHandler(svc *Service, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		childID := chi.URLParam(r, "childID")

		// Permisos primero, para no filtrar si la entrada existe
		grantID, ok := authorize(w, r, authz, caller.Party, childID, accessgrants.CapEditNotes)
		if !ok {
			return
		}

		e, err := svc.Void(r.Context(), childID, chi.URLParam(r, "entryID"), caller.Party, grantID != "")
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "entry not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, ErrForbidden) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(e))
	}
}

func authorize(w http.ResponseWriter, r *http.Request, authz Authorizer, p parties.Party, childID string, c accessgrants.Capability) (string, bool) {
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

func parseListFilter(r *http.Request) (ListFilter, error) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	filter := ListFilter{Limit: limit}

	// kinds=NOTE,MILESTONE
	if v := strings.TrimSpace(r.URL.Query().Get("kinds")); v != "" {
		parts := strings.Split(v, ",")
		out := make([]Kind, 0, len(parts))
		for _, p := range parts {
			k := Kind(strings.ToUpper(strings.TrimSpace(p)))
			if k == "" {
				continue
			}
			if !k.Valid() {
				return ListFilter{}, errors.New("unknown kind " + string(k))
			}
			out = append(out, k)
		}
		if len(out) > 0 {
			filter.Kinds = out
		}
	}

	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}

	if v := strings.TrimSpace(r.URL.Query().Get("q")); v != "" {
		filter.Query = v
	}

	return filter, nil
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:         e.ID,
		ChildID:    e.ChildID,
		Kind:       e.Kind,
		OccurredAt: e.OccurredAt,
		RecordedAt: e.RecordedAt,
		Title:      e.Title,
		Notes:      e.Notes,
		Author:     e.Author,
		GrantID:    e.GrantID,
		Status:     e.Status,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
