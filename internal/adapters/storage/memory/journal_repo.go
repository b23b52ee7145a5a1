package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"child-development-records/internal/domain/journal"
)

type journalRepo struct {
	s *Store
}

func NewJournalRepo(s *Store) journal.Repository {
	return &journalRepo{s: s}
}

func (r *journalRepo) Create(ctx context.Context, e journal.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.ID == "" {
		return errors.New("entry id required")
	}
	if _, exists := r.s.journal[e.ID]; exists {
		return errors.New("entry already exists")
	}
	r.s.journal[e.ID] = e
	return nil
}

func (r *journalRepo) GetByID(ctx context.Context, id string) (journal.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.journal[id]
	if !ok {
		return journal.Entry{}, journal.ErrNotFound
	}
	return e, nil
}

func (r *journalRepo) ListByChild(ctx context.Context, childID string, filter journal.ListFilter) ([]journal.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	q := strings.ToLower(strings.TrimSpace(filter.Query))

	out := make([]journal.Entry, 0)
	for _, e := range r.s.journal {
		if e.ChildID != childID {
			continue
		}
		if len(filter.Kinds) > 0 && !containsKind(filter.Kinds, e.Kind) {
			continue
		}
		if filter.From != nil && e.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.OccurredAt.After(*filter.To) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(e.Title+" "+e.Notes), q) {
			continue
		}
		out = append(out, e)
	}

	// Orden por occurred_at desc (más reciente primero)
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *journalRepo) Void(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.journal[id]
	if !ok {
		return journal.ErrNotFound
	}
	e.Status = journal.StatusVoided
	r.s.journal[id] = e
	return nil
}

func containsKind(kinds []journal.Kind, k journal.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
