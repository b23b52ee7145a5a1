package relationships

import (
	"context"

	"child-development-records/internal/domain/parties"
)

type Repository interface {
	CreateDirect(ctx context.Context, v View) error
	Get(ctx context.Context, subjectID string, party parties.Party) (View, error)
	ListBySubject(ctx context.Context, subjectID string) ([]View, error)
	ListByParty(ctx context.Context, party parties.Party) ([]View, error)
}

// Projector materializa la View de un grantee al reclamar un grant.
// Solo se invoca dentro de la transacción de claim.
type Projector interface {
	Upsert(ctx context.Context, v View) error
}
