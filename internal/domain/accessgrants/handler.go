package accessgrants

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"child-development-records/internal/domain/parties"
	"child-development-records/internal/platform/logger"
	"child-development-records/internal/platform/validation"

	"github.com/go-chi/chi/v5"
)

// HandlerDeps agrupa lo que necesitan las rutas. TokenGuard envuelve
// validate/claim (rate limit contra fuerza bruta); puede ser nil.
type HandlerDeps struct {
	Service    *Service
	Validator  *validation.Validator
	Log        logger.Logger
	TokenGuard func(http.Handler) http.Handler
}

// RegisterRoutes cuelga las rutas de un router ya montado en /as/{role}
// con parties.RequireProfile.
func RegisterRoutes(r chi.Router, d HandlerDeps) {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Validator == nil {
		d.Validator = validation.New()
	}

	r.Route("/grants", func(gr chi.Router) {
		gr.Post("/", createGrantHandler(d))
		gr.Get("/", listIssuedGrantsHandler(d))
		gr.Get("/received", listReceivedGrantsHandler(d))

		gr.Route("/{grantID}", func(ir chi.Router) {
			ir.Delete("/", revokeGrantHandler(d))
			ir.Put("/permissions", updatePermissionsHandler(d))
			ir.Get("/audit", grantAuditHandler(d))
		})
	})

	r.Group(func(tr chi.Router) {
		if d.TokenGuard != nil {
			tr.Use(d.TokenGuard)
		}
		tr.Post("/grant-tokens/validate", validateTokenHandler(d))
		tr.Post("/grant-tokens/claim", claimTokenHandler(d))
	})
}

type permissionsDTO struct {
	ViewDemographics bool `json:"view_demographics"`
	ViewMedical      bool `json:"view_medical"`
	ViewScreenings   bool `json:"view_screenings"`
	ViewAssessments  bool `json:"view_assessments"`
	ViewReports      bool `json:"view_reports"`
	EditNotes        bool `json:"edit_notes"`
}

func (p *permissionsDTO) toDomain() Permissions {
	if p == nil {
		return Permissions{}
	}
	return Permissions(*p)
}

type createGrantRequest struct {
	SubjectID    string          `json:"subject_id" validate:"required"`
	GranteeType  string          `json:"grantee_type" validate:"required,role"`
	GranteeEmail string          `json:"grantee_email" validate:"omitempty,email"`
	Permissions  *permissionsDTO `json:"permissions"`
	AccessLevel  string          `json:"access_level" validate:"omitempty,oneof=view edit"`
	TTLDays      int             `json:"ttl_days" validate:"omitempty,min=1"`
	ExpiresAt    *time.Time      `json:"expires_at"`
}

type createGrantResponse struct {
	ID             string    `json:"id"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,grant_token"`
}

type claimResponse struct {
	GrantID   string `json:"grant_id"`
	SubjectID string `json:"subject_id"`
}

type updatePermissionsRequest struct {
	Permissions permissionsDTO `json:"permissions"`
	AccessLevel string         `json:"access_level" validate:"omitempty,oneof=view edit"`
}

type grantResponse struct {
	ID             string         `json:"id"`
	SubjectID      string         `json:"subject_id"`
	Grantor        parties.Party  `json:"grantor"`
	GranteeType    parties.Role   `json:"grantee_type"`
	Grantee        *parties.Party `json:"grantee,omitempty"`
	GranteeEmail   string         `json:"grantee_email,omitempty"`
	Token          string         `json:"token,omitempty"`
	TokenExpiresAt time.Time      `json:"token_expires_at"`
	Permissions    permissionsDTO `json:"permissions"`
	AccessLevel    AccessLevel    `json:"access_level"`
	Status         Status         `json:"status"`
	GrantedAt      time.Time      `json:"granted_at"`
	GrantedByName  string         `json:"granted_by_name"`
	ActivatedAt    *time.Time     `json:"activated_at,omitempty"`
	RevokedAt      *time.Time     `json:"revoked_at,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type auditEntryResponse struct {
	ID     string          `json:"id"`
	Action AuditAction     `json:"action"`
	Actor  *parties.Party  `json:"actor,omitempty"`
	At     time.Time       `json:"at"`
	Old    json.RawMessage `json:"old,omitempty"`
	New    json.RawMessage `json:"new,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// createGrantHandler godoc
// @Summary Emitir grant de acceso
// @Description Crea un grant pending sobre un niño con el que el caller tiene relación directa y devuelve el token XXXX-YYYY (una sola vez).
// @Tags grants
// @Accept json
// @Produce json
// @Param role path string true "parent|clinician"
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param payload body createGrantRequest true "subject_id, grantee_type, permisos"
// @Success 201 {object} createGrantResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /as/{role}/grants [post]
func createGrantHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		var req createGrantRequest
		if !decodeAndValidate(w, r, d.Validator, &req) {
			return
		}

		granteeType, _ := parties.ParseRole(req.GranteeType)
		level, _ := ParseAccessLevel(req.AccessLevel)

		res, err := d.Service.Create(r.Context(), caller, CreateInput{
			SubjectID:    req.SubjectID,
			GranteeType:  granteeType,
			GranteeEmail: req.GranteeEmail,
			Permissions:  req.Permissions.toDomain(),
			AccessLevel:  level,
			TTLDays:      req.TTLDays,
			ExpiresAt:    req.ExpiresAt,
		})
		if err != nil {
			writeServiceError(w, d.Log, err)
			return
		}

		writeJSON(w, http.StatusCreated, createGrantResponse{
			ID:             res.ID,
			Token:          res.Token,
			TokenExpiresAt: res.TokenExpiresAt,
		})
	}
}

// listIssuedGrantsHandler godoc
// @Summary Grants emitidos por el caller
// @Tags grants
// @Produce json
// @Param role path string true "parent|clinician"
// @Success 200 {array} grantResponse
// @Router /as/{role}/grants [get]
func listIssuedGrantsHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		items, err := d.Service.ListByGrantor(r.Context(), caller)
		if err != nil {
			writeServiceError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items, d.Service.now(), true))
	}
}

// listReceivedGrantsHandler godoc
// @Summary Grants reclamados por el caller
// @Tags grants
// @Produce json
// @Param role path string true "parent|clinician"
// @Success 200 {array} grantResponse
// @Router /as/{role}/grants/received [get]
func listReceivedGrantsHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		items, err := d.Service.ListByGrantee(r.Context(), caller)
		if err != nil {
			writeServiceError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponses(items, d.Service.now(), false))
	}
}

// revokeGrantHandler godoc
// @Summary Revocar grant
// @Description pending|active -> revoked. Idempotente sobre revoked; 409 si ya expiró.
// @Tags grants
// @Produce json
// @Param role path string true "parent|clinician"
// @Param grantID path string true "Grant ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /as/{role}/grants/{grantID} [delete]
func revokeGrantHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		grantID := chi.URLParam(r, "grantID")
		if err := d.Service.Revoke(r.Context(), caller, grantID); err != nil {
			writeServiceError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": grantID, "status": string(StatusRevoked)})
	}
}

// updatePermissionsHandler godoc
// @Summary Actualizar permisos de un grant activo
// @Tags grants
// @Accept json
// @Produce json
// @Param role path string true "parent|clinician"
// @Param grantID path string true "Grant ID"
// @Param payload body updatePermissionsRequest true "permisos nuevos"
// @Success 200 {object} grantResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /as/{role}/grants/{grantID}/permissions [put]
func updatePermissionsHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		var req updatePermissionsRequest
		if !decodeAndValidate(w, r, d.Validator, &req) {
			return
		}

		var level *AccessLevel
		if lv, ok := ParseAccessLevel(req.AccessLevel); ok {
			level = &lv
		}

		g, err := d.Service.UpdatePermissions(r.Context(), caller, chi.URLParam(r, "grantID"), req.Permissions.toDomain(), level)
		if err != nil {
			writeServiceError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, toGrantResponse(g, d.Service.now(), true))
	}
}

// grantAuditHandler godoc
// @Summary Historia de auditoría de un grant
// @Tags grants
// @Produce json
// @Param role path string true "parent|clinician"
// @Param grantID path string true "Grant ID"
// @Success 200 {array} auditEntryResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /as/{role}/grants/{grantID}/audit [get]
func grantAuditHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		items, err := d.Service.Audit(r.Context(), caller, chi.URLParam(r, "grantID"))
		if err != nil {
			writeServiceError(w, d.Log, err)
			return
		}

		out := make([]auditEntryResponse, 0, len(items))
		for _, e := range items {
			item := auditEntryResponse{
				ID:     e.ID,
				Action: e.Action,
				At:     e.At,
				Old:    e.Old,
				New:    e.New,
			}
			if !e.Actor.IsZero() {
				a := e.Actor
				item.Actor = &a
			}
			out = append(out, item)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// validateTokenHandler godoc
// @Summary Previsualizar un token
// @Description Solo lectura. Devuelve nombre del niño, quién otorga y permisos; nunca el token ni el id del grant.
// @Tags grant-tokens
// @Accept json
// @Produce json
// @Param role path string true "parent|clinician"
// @Param payload body tokenRequest true "token XXXX-YYYY"
// @Success 200 {object} Preview
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse "INVALID_TOKEN"
// @Failure 429 {object} errorResponse
// @Router /as/{role}/grant-tokens/validate [post]
func validateTokenHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		var req tokenRequest
		if !decodeAndValidate(w, r, d.Validator, &req) {
			return
		}

		p, err := d.Service.Validate(r.Context(), caller, req.Token)
		if err != nil {
			writeServiceError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// claimTokenHandler godoc
// @Summary Reclamar un token
// @Description Activa el grant para el caller. Un token solo puede reclamarse una vez.
// @Tags grant-tokens
// @Accept json
// @Produce json
// @Param role path string true "parent|clinician"
// @Param payload body tokenRequest true "token XXXX-YYYY"
// @Success 200 {object} claimResponse
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse "INVALID_TOKEN"
// @Failure 429 {object} errorResponse
// @Router /as/{role}/grant-tokens/claim [post]
func claimTokenHandler(d HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := parties.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}

		var req tokenRequest
		if !decodeAndValidate(w, r, d.Validator, &req) {
			return
		}

		res, err := d.Service.Claim(r.Context(), caller, req.Token)
		if err != nil {
			writeServiceError(w, d.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, claimResponse{GrantID: res.GrantID, SubjectID: res.SubjectID})
	}
}

func toGrantResponses(items []Grant, now time.Time, issuer bool) []grantResponse {
	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toGrantResponse(g, now, issuer))
	}
	return out
}

// toGrantResponse muestra el status efectivo. El token solo se devuelve
// al emisor y mientras siga utilizable.
func toGrantResponse(g Grant, now time.Time, issuer bool) grantResponse {
	resp := grantResponse{
		ID:             g.ID,
		SubjectID:      g.SubjectID,
		Grantor:        g.Grantor,
		GranteeType:    g.GranteeType,
		TokenExpiresAt: g.TokenExpiresAt,
		Permissions:    permissionsDTO(g.Permissions),
		AccessLevel:    g.AccessLevel,
		Status:         g.EffectiveStatus(now),
		GrantedAt:      g.GrantedAt,
		GrantedByName:  g.GrantedByName,
		ActivatedAt:    g.ActivatedAt,
		RevokedAt:      g.RevokedAt,
		ExpiresAt:      g.ExpiresAt,
		LastAccessedAt: g.LastAccessedAt,
		UpdatedAt:      g.UpdatedAt,
	}
	if issuer {
		resp.GranteeEmail = g.GranteeEmail
		if g.TokenUsable(now) {
			resp.Token = g.Token
		}
	}
	if !g.Grantee.IsZero() {
		p := g.Grantee
		resp.Grantee = &p
	}
	return resp
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return false
	}
	if err := v.Validate(dst); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

// writeServiceError traduce errores del dominio a la taxonomía HTTP.
// Errores de storage nunca cruzan el borde: se loguean y salen como INTERNAL.
func writeServiceError(w http.ResponseWriter, log logger.Logger, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	case errors.Is(err, ErrInvalidOrExpiredToken):
		writeError(w, http.StatusNotFound, "INVALID_TOKEN", ErrInvalidOrExpiredToken.Error())
	case errors.Is(err, ErrAccessDenied):
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", ErrAccessDenied.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", ErrNotFound.Error())
	case errors.Is(err, ErrInvalidState):
		writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
	default:
		log.Error("grant request failed", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
