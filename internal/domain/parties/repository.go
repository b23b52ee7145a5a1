package parties

import "context"

type Repository interface {
	Create(ctx context.Context, p Profile) error
	GetByUser(ctx context.Context, userID string, role Role) (Profile, error)
	GetByParty(ctx context.Context, party Party) (Profile, error)
	ListByUser(ctx context.Context, userID string) ([]Profile, error)
}
