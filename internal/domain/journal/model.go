package journal

import (
	"time"

	"child-development-records/internal/domain/parties"
)

type Kind string

const (
	KindNote           Kind = "NOTE"
	KindObservation    Kind = "OBSERVATION"
	KindMilestone      Kind = "MILESTONE"
	KindSessionSummary Kind = "SESSION_SUMMARY"
)

func (k Kind) Valid() bool {
	switch k {
	case KindNote, KindObservation, KindMilestone, KindSessionSummary:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusActive Status = "active"
	StatusVoided Status = "voided"
)

// Entry es una anotación en la historia de un niño. No se borra, se anula.
type Entry struct {
	ID      string
	ChildID string

	Kind Kind

	OccurredAt time.Time
	RecordedAt time.Time

	Title string
	Notes string

	Author parties.Party
	// GrantID: grant que habilitó la escritura (vacío si el autor tiene relación direct).
	GrantID string

	Status Status
}
