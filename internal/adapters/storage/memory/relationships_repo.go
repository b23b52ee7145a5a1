package memory

import (
	"context"
	"sort"

	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

type relationshipRepo struct {
	s *Store
}

func NewRelationshipRepo(s *Store) relationships.Repository {
	return &relationshipRepo{s: s}
}

func (r *relationshipRepo) CreateDirect(ctx context.Context, v relationships.View) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := keyOf(v.SubjectID, v.Party)
	if existing, ok := r.s.rels[k]; ok {
		if existing.Kind == relationships.KindDirect {
			return relationships.ErrExists
		}
		// una fila granted previa se promueve a direct
		v.CreatedAt = existing.CreatedAt
	}
	r.s.rels[k] = v
	return nil
}

func (r *relationshipRepo) Get(ctx context.Context, subjectID string, party parties.Party) (relationships.View, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.rels[keyOf(subjectID, party)]
	if !ok {
		return relationships.View{}, relationships.ErrNotFound
	}
	return v, nil
}

func (r *relationshipRepo) ListBySubject(ctx context.Context, subjectID string) ([]relationships.View, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]relationships.View, 0)
	for _, v := range r.s.rels {
		if v.SubjectID == subjectID {
			out = append(out, v)
		}
	}
	sortViews(out)
	return out, nil
}

func (r *relationshipRepo) ListByParty(ctx context.Context, party parties.Party) ([]relationships.View, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]relationships.View, 0)
	for _, v := range r.s.rels {
		if v.Party == party {
			out = append(out, v)
		}
	}
	sortViews(out)
	return out, nil
}

// Orden estable por created_at asc (solo para consistencia en dev)
func sortViews(out []relationships.View) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}
