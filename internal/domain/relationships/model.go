package relationships

import (
	"time"

	"child-development-records/internal/domain/parties"
)

// Kind distingue relaciones durables (padre de, clínico tratante) de las
// materializadas al reclamar un grant.
type Kind string

const (
	KindDirect  Kind = "direct"
	KindGranted Kind = "granted"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// View es la fila única por (subject, party) que consultan los listados de registros.
// Una View de tipo granted no autoriza nada por sí sola: el acceso derivado
// de un grant se decide siempre contra el estado del grant.
type View struct {
	SubjectID string
	Party     parties.Party

	Kind   Kind
	Status Status

	GrantID string // último grant que materializó/reactivó la fila (vacío si direct)

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (v View) IsActiveDirect() bool {
	return v.Kind == KindDirect && v.Status == StatusActive
}
