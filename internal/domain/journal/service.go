package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	"child-development-records/internal/domain/parties"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("journal entry not found")
	ErrForbidden    = errors.New("only the author can void this entry")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Kind       Kind
	OccurredAt time.Time
	Title      string
	Notes      string
	GrantID    string
}

func (s *Service) Create(ctx context.Context, childID string, author parties.Party, in CreateInput) (Entry, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" || !author.Valid() {
		return Entry{}, ErrInvalidInput
	}
	if !in.Kind.Valid() {
		return Entry{}, ErrInvalidInput
	}
	if in.OccurredAt.IsZero() {
		return Entry{}, ErrInvalidInput
	}
	title := strings.TrimSpace(in.Title)
	notes := strings.TrimSpace(in.Notes)
	if title == "" && notes == "" {
		return Entry{}, ErrInvalidInput
	}

	e := Entry{
		ID:         uuid.NewString(),
		ChildID:    childID,
		Kind:       in.Kind,
		OccurredAt: in.OccurredAt,
		RecordedAt: s.now(),
		Title:      title,
		Notes:      notes,
		Author:     author,
		GrantID:    strings.TrimSpace(in.GrantID),
		Status:     StatusActive,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Entry{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByChild(ctx context.Context, childID string, filter ListFilter) ([]Entry, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByChild(ctx, childID, filter)
}

// Void anula la entrada si pertenece al niño indicado. Idempotente.
// Quien accede por grant (viaGrant) solo puede anular sus propias entradas.
func (s *Service) Void(ctx context.Context, childID, id string, actor parties.Party, viaGrant bool) (Entry, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if e.ChildID != strings.TrimSpace(childID) {
		return Entry{}, ErrNotFound
	}
	if viaGrant && e.Author != actor {
		return Entry{}, ErrForbidden
	}
	if e.Status == StatusVoided {
		return e, nil
	}
	if err := s.repo.Void(ctx, e.ID); err != nil {
		return Entry{}, err
	}
	e.Status = StatusVoided
	return e, nil
}
