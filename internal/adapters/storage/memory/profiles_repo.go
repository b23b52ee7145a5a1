package memory

import (
	"context"
	"errors"
	"sort"

	"child-development-records/internal/domain/parties"
)

type profileRepo struct {
	s *Store
}

func NewProfileRepo(s *Store) parties.Repository {
	return &profileRepo{s: s}
}

func (r *profileRepo) Create(ctx context.Context, p parties.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !p.Valid() {
		return errors.New("profile id required")
	}
	if _, exists := r.s.profiles[p.Party.String()]; exists {
		return parties.ErrProfileExists
	}
	for _, existing := range r.s.profiles {
		if existing.UserID == p.UserID && existing.Role == p.Role {
			return parties.ErrProfileExists
		}
	}
	r.s.profiles[p.Party.String()] = p
	return nil
}

func (r *profileRepo) GetByUser(ctx context.Context, userID string, role parties.Role) (parties.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.profiles {
		if p.UserID == userID && p.Role == role {
			return p, nil
		}
	}
	return parties.Profile{}, parties.ErrNotFound
}

func (r *profileRepo) GetByParty(ctx context.Context, party parties.Party) (parties.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[party.String()]
	if !ok {
		return parties.Profile{}, parties.ErrNotFound
	}
	return p, nil
}

func (r *profileRepo) ListByUser(ctx context.Context, userID string) ([]parties.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]parties.Profile, 0, 2)
	for _, p := range r.s.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Role < out[j].Role
	})
	return out, nil
}
