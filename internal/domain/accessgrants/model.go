package accessgrants

import (
	"encoding/json"
	"strings"
	"time"

	"child-development-records/internal/domain/parties"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

type AccessLevel string

const (
	AccessView AccessLevel = "view"
	AccessEdit AccessLevel = "edit"
)

func ParseAccessLevel(s string) (AccessLevel, bool) {
	switch AccessLevel(strings.ToLower(strings.TrimSpace(s))) {
	case AccessView:
		return AccessView, true
	case AccessEdit:
		return AccessEdit, true
	default:
		return "", false
	}
}

// Capability es el nombre de un flag de Permissions; lo usan los chequeos de acceso.
type Capability string

const (
	CapViewDemographics Capability = "view_demographics"
	CapViewMedical      Capability = "view_medical"
	CapViewScreenings   Capability = "view_screenings"
	CapViewAssessments  Capability = "view_assessments"
	CapViewReports      Capability = "view_reports"
	CapEditNotes        Capability = "edit_notes"
)

// Permissions tiene forma fija: no se aceptan capabilities fuera de esta lista.
type Permissions struct {
	ViewDemographics bool `json:"view_demographics"`
	ViewMedical      bool `json:"view_medical"`
	ViewScreenings   bool `json:"view_screenings"`
	ViewAssessments  bool `json:"view_assessments"`
	ViewReports      bool `json:"view_reports"`
	EditNotes        bool `json:"edit_notes"`
}

// DefaultPermissions se aplica cuando el grantor no marca ningún flag.
func DefaultPermissions() Permissions {
	return Permissions{
		ViewDemographics: true,
		ViewScreenings:   true,
		ViewAssessments:  true,
	}
}

func (p Permissions) IsZero() bool {
	return p == Permissions{}
}

func (p Permissions) Allows(c Capability) bool {
	switch c {
	case CapViewDemographics:
		return p.ViewDemographics
	case CapViewMedical:
		return p.ViewMedical
	case CapViewScreenings:
		return p.ViewScreenings
	case CapViewAssessments:
		return p.ViewAssessments
	case CapViewReports:
		return p.ViewReports
	case CapEditNotes:
		return p.EditNotes
	default:
		return false
	}
}

// Capabilities lista los flags activos en orden estable.
func (p Permissions) Capabilities() []Capability {
	all := []Capability{
		CapViewDemographics,
		CapViewMedical,
		CapViewScreenings,
		CapViewAssessments,
		CapViewReports,
		CapEditNotes,
	}
	out := make([]Capability, 0, len(all))
	for _, c := range all {
		if p.Allows(c) {
			out = append(out, c)
		}
	}
	return out
}

// Grant es el registro histórico de una delegación de acceso. Nunca se borra.
type Grant struct {
	ID string

	// Token vacío == NULL. Solo existe mientras Status == pending.
	Token          string
	TokenExpiresAt time.Time

	Grantor     parties.Party
	GranteeType parties.Role
	Grantee     parties.Party // cero hasta el claim

	GranteeEmail string // opcional, en minúsculas
	SubjectID    string

	Permissions Permissions
	AccessLevel AccessLevel
	Status      Status

	GrantedAt      time.Time
	ActivatedAt    *time.Time
	RevokedAt      *time.Time
	ExpiresAt      *time.Time // vencimiento del grant, distinto de TokenExpiresAt
	LastAccessedAt *time.Time
	UpdatedAt      time.Time

	// Copia de display del grantor al momento de crear; nunca se re-resuelve.
	GrantedByName  string
	GrantedByEmail string
}

// TokenUsable: el token sirve solo si sigue pending y TokenExpiresAt > now
// (mismo predicado que usa el lookup del store).
func (g Grant) TokenUsable(now time.Time) bool {
	return g.Status == StatusPending && g.Token != "" && now.Before(g.TokenExpiresAt)
}

// AccessExpired reporta si el vencimiento general del grant ya pasó.
func (g Grant) AccessExpired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

// EffectiveStatus resuelve la expiración lazy para listados:
// un pending con token vencido se muestra como expired aunque el sweep no haya corrido.
func (g Grant) EffectiveStatus(now time.Time) Status {
	if g.Status == StatusPending && !now.Before(g.TokenExpiresAt) {
		return StatusExpired
	}
	return g.Status
}

type AuditAction string

const (
	AuditCreated            AuditAction = "created"
	AuditClaimed            AuditAction = "claimed"
	AuditRevoked            AuditAction = "revoked"
	AuditExpired            AuditAction = "expired"
	AuditPermissionsUpdated AuditAction = "permissions_updated"
)

// AuditEntry es una fila append-only de grant_audit_events.
// Actor cero significa "system" (expiración lazy o sweep).
type AuditEntry struct {
	ID      string
	GrantID string
	Action  AuditAction
	Actor   parties.Party
	At      time.Time

	Old json.RawMessage
	New json.RawMessage
}

// auditState es lo que se serializa en Old/New.
type auditState struct {
	Status      Status         `json:"status"`
	AccessLevel AccessLevel    `json:"access_level"`
	Permissions Permissions    `json:"permissions"`
	Grantee     *parties.Party `json:"grantee,omitempty"`
}

func snapshot(g Grant) json.RawMessage {
	st := auditState{
		Status:      g.Status,
		AccessLevel: g.AccessLevel,
		Permissions: g.Permissions,
	}
	if !g.Grantee.IsZero() {
		p := g.Grantee
		st.Grantee = &p
	}
	b, _ := json.Marshal(st)
	return b
}
