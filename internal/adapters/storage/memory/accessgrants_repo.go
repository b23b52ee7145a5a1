package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

type accessGrantRepo struct {
	s *Store
}

func NewAccessGrantRepo(s *Store) accessgrants.Repository {
	return &accessGrantRepo{s: s}
}

func (r *accessGrantRepo) Create(ctx context.Context, g accessgrants.Grant, created accessgrants.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if strings.TrimSpace(g.ID) == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.s.grants[g.ID]; exists {
		return errors.New("grant already exists")
	}
	if g.Token != "" {
		if _, taken := r.s.tokens[g.Token]; taken {
			return accessgrants.ErrTokenConflict
		}
		r.s.tokens[g.Token] = g.ID
	}
	r.s.grants[g.ID] = g
	r.s.audit = append(r.s.audit, created)
	return nil
}

func (r *accessGrantRepo) TokenExists(ctx context.Context, token string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.tokens[token]
	return ok, nil
}

func (r *accessGrantRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.grants[id]
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, nil
}

func (r *accessGrantRepo) FindPendingByToken(ctx context.Context, token string, granteeType parties.Role, now time.Time) (accessgrants.Grant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.tokens[token]
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	g := r.s.grants[id]
	if g.Token != token || g.GranteeType != granteeType || !g.TokenUsable(now) {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, nil
}

func (r *accessGrantRepo) ListByGrantor(ctx context.Context, grantor parties.Party) ([]accessgrants.Grant, error) {
	return r.list(func(g accessgrants.Grant) bool { return g.Grantor == grantor }), nil
}

func (r *accessGrantRepo) ListByGrantee(ctx context.Context, grantee parties.Party) ([]accessgrants.Grant, error) {
	return r.list(func(g accessgrants.Grant) bool { return g.Grantee == grantee }), nil
}

func (r *accessGrantRepo) ActiveForGrantee(ctx context.Context, subjectID string, grantee parties.Party) ([]accessgrants.Grant, error) {
	return r.list(func(g accessgrants.Grant) bool {
		return g.SubjectID == subjectID && g.Grantee == grantee && g.Status == accessgrants.StatusActive
	}), nil
}

// list devuelve por granted_at desc.
func (r *accessGrantRepo) list(match func(accessgrants.Grant) bool) []accessgrants.Grant {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]accessgrants.Grant, 0)
	for _, g := range r.s.grants {
		if match(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].GrantedAt.After(out[j].GrantedAt)
	})
	return out
}

func (r *accessGrantRepo) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.grants[id]
	if !ok {
		return accessgrants.ErrNotFound
	}
	g.LastAccessedAt = &at
	r.s.grants[id] = g
	return nil
}

func (r *accessGrantRepo) ListAudit(ctx context.Context, grantID string) ([]accessgrants.AuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]accessgrants.AuditEntry, 0)
	for _, e := range r.s.audit {
		if e.GrantID == grantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// WithinTx toma el lock de escritura durante toda la unidad de trabajo.
// Los cambios se acumulan en el tx y se aplican solo si fn devuelve nil.
func (r *accessGrantRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx accessgrants.Tx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := &grantTx{
		s:      r.s,
		grants: make(map[string]accessgrants.Grant),
		rels:   make(map[relKey]relationships.View),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type grantTx struct {
	s *Store

	grants map[string]accessgrants.Grant
	rels   map[relKey]relationships.View
	audit  []accessgrants.AuditEntry
}

func (t *grantTx) get(id string) (accessgrants.Grant, bool) {
	if g, ok := t.grants[id]; ok {
		return g, true
	}
	g, ok := t.s.grants[id]
	return g, ok
}

func (t *grantTx) LockByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	g, ok := t.get(id)
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, nil
}

func (t *grantTx) LockPendingByToken(ctx context.Context, token string, granteeType parties.Role) (accessgrants.Grant, error) {
	id, ok := t.s.tokens[token]
	if !ok {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	g, ok := t.get(id)
	if !ok || g.Token != token || g.Status != accessgrants.StatusPending || g.GranteeType != granteeType {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, nil
}

func (t *grantTx) LockStalePending(ctx context.Context, now time.Time, limit int) ([]accessgrants.Grant, error) {
	out := make([]accessgrants.Grant, 0)
	for id := range t.s.grants {
		g, _ := t.get(id)
		if g.Status == accessgrants.StatusPending && !now.Before(g.TokenExpiresAt) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TokenExpiresAt.Before(out[j].TokenExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *grantTx) Activate(ctx context.Context, id string, grantee parties.Party, now time.Time) error {
	g, ok := t.get(id)
	if !ok || !g.TokenUsable(now) {
		return accessgrants.ErrAlreadyClaimed
	}
	g.Status = accessgrants.StatusActive
	g.Token = ""
	g.Grantee = grantee
	g.ActivatedAt = &now
	g.UpdatedAt = now
	t.grants[id] = g
	return nil
}

func (t *grantTx) Transition(ctx context.Context, id string, from []accessgrants.Status, to accessgrants.Status, now time.Time) error {
	g, ok := t.get(id)
	if !ok {
		return accessgrants.ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if g.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return accessgrants.ErrInvalidState
	}

	g.Status = to
	g.Token = ""
	g.UpdatedAt = now
	if to == accessgrants.StatusRevoked {
		g.RevokedAt = &now
	}
	t.grants[id] = g
	return nil
}

func (t *grantTx) UpdatePermissions(ctx context.Context, id string, perms accessgrants.Permissions, level accessgrants.AccessLevel, now time.Time) error {
	g, ok := t.get(id)
	if !ok {
		return accessgrants.ErrNotFound
	}
	g.Permissions = perms
	g.AccessLevel = level
	g.UpdatedAt = now
	t.grants[id] = g
	return nil
}

func (t *grantTx) AppendAudit(ctx context.Context, e accessgrants.AuditEntry) error {
	t.audit = append(t.audit, e)
	return nil
}

func (t *grantTx) Relationships() relationships.Projector {
	return txProjector{t: t}
}

func (t *grantTx) commit() {
	for id, g := range t.grants {
		if old, ok := t.s.grants[id]; ok && old.Token != "" && old.Token != g.Token {
			delete(t.s.tokens, old.Token)
		}
		t.s.grants[id] = g
	}
	for k, v := range t.rels {
		t.s.rels[k] = v
	}
	t.s.audit = append(t.s.audit, t.audit...)
}

type txProjector struct {
	t *grantTx
}

func (p txProjector) Upsert(ctx context.Context, v relationships.View) error {
	k := keyOf(v.SubjectID, v.Party)
	existing, ok := p.t.rels[k]
	if !ok {
		existing, ok = p.t.s.rels[k]
	}
	if ok {
		v = relationships.Merge(existing, v)
	}
	p.t.rels[k] = v
	return nil
}
