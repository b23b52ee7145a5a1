package relationships

import (
	"context"
	"errors"
	"strings"
	"time"

	"child-development-records/internal/domain/parties"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("relationship not found")
	ErrExists       = errors.New("relationship already exists")
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

// LinkDirect registra una relación durable (p.ej. al dar de alta un niño).
func (s *Service) LinkDirect(ctx context.Context, subjectID string, party parties.Party) (View, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" || !party.Valid() {
		return View{}, ErrInvalidInput
	}

	now := s.now()
	v := View{
		SubjectID: subjectID,
		Party:     party,
		Kind:      KindDirect,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateDirect(ctx, v); err != nil {
		return View{}, err
	}
	return v, nil
}

// HasDirect responde si party tiene una relación durable y activa con el sujeto.
// Es la verificación que exige la creación de un grant.
func (s *Service) HasDirect(ctx context.Context, party parties.Party, subjectID string) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" || !party.Valid() {
		return false, ErrInvalidInput
	}
	v, err := s.repo.Get(ctx, subjectID, party)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return v.IsActiveDirect(), nil
}

func (s *Service) Get(ctx context.Context, subjectID string, party parties.Party) (View, error) {
	return s.repo.Get(ctx, strings.TrimSpace(subjectID), party)
}

func (s *Service) ListForParty(ctx context.Context, party parties.Party) ([]View, error) {
	if !party.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByParty(ctx, party)
}

func (s *Service) ListForSubject(ctx context.Context, subjectID string) ([]View, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListBySubject(ctx, subjectID)
}

// Merge aplica la regla de upsert del claim sobre una fila existente:
// se reactiva y se apunta al nuevo grant, pero una relación direct nunca se degrada.
func Merge(existing View, incoming View) View {
	out := existing
	out.Status = StatusActive
	out.GrantID = incoming.GrantID
	out.UpdatedAt = incoming.UpdatedAt
	if existing.Kind != KindDirect {
		out.Kind = incoming.Kind
	}
	return out
}
