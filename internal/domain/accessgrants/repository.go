package accessgrants

import (
	"context"
	"time"

	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

// Repository es el GrantStore. Las lecturas fuera de WithinTx no bloquean nada;
// toda transición de estado pasa por Tx.
type Repository interface {
	TokenChecker

	// Create inserta el grant pending y su evento "created" de forma atómica.
	// Devuelve ErrTokenConflict si el índice único de token rechaza la fila.
	Create(ctx context.Context, g Grant, created AuditEntry) error

	GetByID(ctx context.Context, id string) (Grant, error)

	// FindPendingByToken aplica el predicado completo del lookup:
	// token, status pending, token_expires_at > now y grantee_type.
	FindPendingByToken(ctx context.Context, token string, granteeType parties.Role, now time.Time) (Grant, error)

	ListByGrantor(ctx context.Context, grantor parties.Party) ([]Grant, error)
	ListByGrantee(ctx context.Context, grantee parties.Party) ([]Grant, error)

	// ActiveForGrantee devuelve los grants active del grantee sobre el sujeto.
	ActiveForGrantee(ctx context.Context, subjectID string, grantee parties.Party) ([]Grant, error)

	TouchLastAccessed(ctx context.Context, id string, at time.Time) error

	ListAudit(ctx context.Context, grantID string) ([]AuditEntry, error)

	// WithinTx ejecuta fn en una unidad de trabajo: commit si fn devuelve nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx agrupa las escrituras que deben ser atómicas con su evento de auditoría.
type Tx interface {
	LockByID(ctx context.Context, id string) (Grant, error)

	// LockPendingByToken toma la fila pending por token sin mirar expiración,
	// para que el claim pueda distinguir "vencido" y marcarlo expired.
	LockPendingByToken(ctx context.Context, token string, granteeType parties.Role) (Grant, error)

	// LockStalePending toma hasta limit filas pending con token vencido.
	// Filas ya bloqueadas por otra transacción se saltean.
	LockStalePending(ctx context.Context, now time.Time, limit int) ([]Grant, error)

	// Activate es condicional sobre pending + token vigente; 0 filas => ErrAlreadyClaimed.
	Activate(ctx context.Context, id string, grantee parties.Party, now time.Time) error

	// Transition mueve el grant a `to` solo si está en alguno de `from`; anula el token.
	// 0 filas => ErrInvalidState.
	Transition(ctx context.Context, id string, from []Status, to Status, now time.Time) error

	UpdatePermissions(ctx context.Context, id string, perms Permissions, level AccessLevel, now time.Time) error

	AppendAudit(ctx context.Context, e AuditEntry) error

	Relationships() relationships.Projector
}

// RelationshipChecker verifica la relación durable del grantor con el sujeto.
type RelationshipChecker interface {
	HasDirect(ctx context.Context, party parties.Party, subjectID string) (bool, error)
}

type SubjectSummary struct {
	ID          string
	DisplayName string
}

// SubjectDirectory resuelve el nombre visible del sujeto para el preview.
// Evita importar el paquete children (rompe ciclos).
type SubjectDirectory interface {
	Summary(ctx context.Context, subjectID string) (SubjectSummary, error)
}
