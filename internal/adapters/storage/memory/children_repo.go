package memory

import (
	"context"
	"errors"
	"strings"

	"child-development-records/internal/domain/children"
)

type childRepo struct {
	s *Store
}

func NewChildRepo(s *Store) children.Repository {
	return &childRepo{s: s}
}

func (r *childRepo) Create(ctx context.Context, c children.Child) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if strings.TrimSpace(c.ID) == "" {
		return errors.New("child id required")
	}
	if _, exists := r.s.children[c.ID]; exists {
		return errors.New("child already exists")
	}
	r.s.children[c.ID] = c
	return nil
}

func (r *childRepo) Update(ctx context.Context, c children.Child) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.children[c.ID]; !exists {
		return children.ErrNotFound
	}
	r.s.children[c.ID] = c
	return nil
}

func (r *childRepo) GetByID(ctx context.Context, id string) (children.Child, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.children[id]
	if !ok {
		return children.Child{}, children.ErrNotFound
	}
	return c, nil
}
