package parties

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"child-development-records/internal/ports/auth"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("profile not found")
	ErrProfileExists = errors.New("profile already exists")
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

type RegisterInput struct {
	Role        Role
	DisplayName string
}

// Register crea el perfil por rol del usuario autenticado.
// El email sale siempre de los claims: es el que se compara contra granteeEmail.
func (s *Service) Register(ctx context.Context, claims auth.Claims, in RegisterInput) (Profile, error) {
	userID := strings.TrimSpace(claims.UserID)
	if userID == "" || !in.Role.Valid() {
		return Profile{}, ErrInvalidInput
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = strings.TrimSpace(claims.Name)
	}
	if name == "" {
		return Profile{}, ErrInvalidInput
	}

	email := NormalizeEmail(claims.Email)

	if _, err := s.repo.GetByUser(ctx, userID, in.Role); err == nil {
		return Profile{}, ErrProfileExists
	} else if !errors.Is(err, ErrNotFound) {
		return Profile{}, fmt.Errorf("lookup profile: %w", err)
	}

	p := Profile{
		Party:       Party{Role: in.Role, ID: uuid.NewString()},
		UserID:      userID,
		Email:       email,
		DisplayName: name,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Resolve traduce claims + rol a la identidad por rol.
// Es el único punto donde un user id del IAM se convierte en Party.
func (s *Service) Resolve(ctx context.Context, claims auth.Claims, role Role) (Profile, error) {
	userID := strings.TrimSpace(claims.UserID)
	if userID == "" || !role.Valid() {
		return Profile{}, ErrInvalidInput
	}
	p, err := s.repo.GetByUser(ctx, userID, role)
	if err != nil {
		return Profile{}, err
	}
	// El email autenticado manda sobre el guardado.
	if email := NormalizeEmail(claims.Email); email != "" {
		p.Email = email
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, party Party) (Profile, error) {
	if !party.Valid() {
		return Profile{}, ErrInvalidInput
	}
	return s.repo.GetByParty(ctx, party)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID)
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
