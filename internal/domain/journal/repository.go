package journal

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e Entry) error
	GetByID(ctx context.Context, id string) (Entry, error)
	ListByChild(ctx context.Context, childID string, filter ListFilter) ([]Entry, error)
	Void(ctx context.Context, id string) error
}

type ListFilter struct {
	Kinds []Kind
	From  *time.Time
	To    *time.Time
	Query string
	Limit int
}
