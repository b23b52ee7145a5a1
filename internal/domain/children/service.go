package children

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("child not found")
)

// Linker da de alta la relación durable del creador.
type Linker interface {
	LinkDirect(ctx context.Context, subjectID string, party parties.Party) (relationships.View, error)
	ListForParty(ctx context.Context, party parties.Party) ([]relationships.View, error)
}

// Authorizer decide acceso por capability (relación direct o grant).
type Authorizer interface {
	Check(ctx context.Context, party parties.Party, subjectID string, c accessgrants.Capability) (string, error)
}

type Service struct {
	repo Repository
	rel  Linker
	now  func() time.Time
}

func NewService(repo Repository, rel Linker) *Service {
	return &Service{
		repo: repo,
		rel:  rel,
		now:  time.Now,
	}
}

type CreateInput struct {
	FirstName string
	LastName  string
	BirthDate *time.Time
	Notes     string
}

// Create da de alta el niño y la relación direct del creador.
func (s *Service) Create(ctx context.Context, creator parties.Party, in CreateInput) (Child, error) {
	if !creator.Valid() {
		return Child{}, ErrInvalidInput
	}
	first := strings.TrimSpace(in.FirstName)
	if first == "" {
		return Child{}, ErrInvalidInput
	}

	now := s.now()
	if in.BirthDate != nil && in.BirthDate.After(now) {
		return Child{}, ErrInvalidInput
	}

	c := Child{
		ID:        uuid.NewString(),
		FirstName: first,
		LastName:  strings.TrimSpace(in.LastName),
		BirthDate: in.BirthDate,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return Child{}, err
	}
	if _, err := s.rel.LinkDirect(ctx, c.ID, creator); err != nil {
		return Child{}, fmt.Errorf("link creator: %w", err)
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Child, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Child{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateInput: punteros para PATCH real, nil = no tocar.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Notes     *string

	BirthDateSet bool
	BirthDate    *time.Time
}

// TouchesDemographics indica si el PATCH cambia datos de identidad del niño.
// Esos campos quedan reservados a relaciones direct.
func (in UpdateInput) TouchesDemographics() bool {
	return in.FirstName != nil || in.LastName != nil || in.BirthDateSet
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Child, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return Child{}, err
	}

	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if v == "" {
			return Child{}, ErrInvalidInput
		}
		c.FirstName = v
	}
	if in.LastName != nil {
		c.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Notes != nil {
		c.Notes = strings.TrimSpace(*in.Notes)
	}

	now := s.now()
	if in.BirthDateSet {
		if in.BirthDate != nil && in.BirthDate.After(now) {
			return Child{}, ErrInvalidInput
		}
		c.BirthDate = in.BirthDate
	}
	c.UpdatedAt = now

	if err := s.repo.Update(ctx, c); err != nil {
		return Child{}, err
	}
	return c, nil
}

// Visible es un niño listado junto con el origen del acceso.
type Visible struct {
	Child   Child
	Kind    relationships.Kind
	GrantID string
}

// ListVisible devuelve los niños que party puede ver: relaciones direct y,
// para filas granted, solo si un grant vigente autoriza view_demographics.
func (s *Service) ListVisible(ctx context.Context, party parties.Party, authz Authorizer) ([]Visible, error) {
	views, err := s.rel.ListForParty(ctx, party)
	if err != nil {
		return nil, err
	}

	out := make([]Visible, 0, len(views))
	for _, v := range views {
		if v.Status != relationships.StatusActive {
			continue
		}
		if v.Kind != relationships.KindDirect {
			if _, err := authz.Check(ctx, party, v.SubjectID, accessgrants.CapViewDemographics); err != nil {
				if errors.Is(err, accessgrants.ErrAccessDenied) {
					continue
				}
				return nil, err
			}
		}

		c, err := s.repo.GetByID(ctx, v.SubjectID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, Visible{Child: c, Kind: v.Kind, GrantID: v.GrantID})
	}
	return out, nil
}

// Summary implementa accessgrants.SubjectDirectory.
func (s *Service) Summary(ctx context.Context, subjectID string) (accessgrants.SubjectSummary, error) {
	c, err := s.GetByID(ctx, subjectID)
	if err != nil {
		return accessgrants.SubjectSummary{}, err
	}
	return accessgrants.SubjectSummary{ID: c.ID, DisplayName: c.DisplayName()}, nil
}
