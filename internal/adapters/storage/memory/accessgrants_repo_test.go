package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

func seedGrant(t *testing.T, repo accessgrants.Repository, id, token string, now time.Time) accessgrants.Grant {
	t.Helper()
	g := accessgrants.Grant{
		ID:             id,
		Token:          token,
		TokenExpiresAt: now.Add(time.Hour),
		Grantor:        parties.Parent("p-1"),
		GranteeType:    parties.RoleClinician,
		SubjectID:      "child-1",
		Permissions:    accessgrants.DefaultPermissions(),
		AccessLevel:    accessgrants.AccessView,
		Status:         accessgrants.StatusPending,
		GrantedAt:      now,
		UpdatedAt:      now,
	}
	err := repo.Create(context.Background(), g, accessgrants.AuditEntry{ID: "a-" + id, GrantID: id, Action: accessgrants.AuditCreated, At: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return g
}

func TestAccessGrantRepo_TokenIsUnique(t *testing.T) {
	s := NewStore()
	repo := NewAccessGrantRepo(s)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedGrant(t, repo, "g-1", "ABCD-2345", now)

	err := repo.Create(context.Background(), accessgrants.Grant{ID: "g-2", Token: "ABCD-2345"}, accessgrants.AuditEntry{})
	if !errors.Is(err, accessgrants.ErrTokenConflict) {
		t.Fatalf("expected ErrTokenConflict, got %v", err)
	}

	exists, _ := repo.TokenExists(context.Background(), "ABCD-2345")
	if !exists {
		t.Fatalf("expected token to exist")
	}
}

func TestAccessGrantRepo_WithinTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	repo := NewAccessGrantRepo(s)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedGrant(t, repo, "g-1", "ABCD-2345", now)

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(ctx context.Context, tx accessgrants.Tx) error {
		if err := tx.Activate(ctx, "g-1", parties.Clinician("c-1"), now); err != nil {
			return err
		}
		if err := tx.Relationships().Upsert(ctx, relationships.View{
			SubjectID: "child-1",
			Party:     parties.Clinician("c-1"),
			Kind:      relationships.KindGranted,
			Status:    relationships.StatusActive,
			GrantID:   "g-1",
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	g, _ := repo.GetByID(ctx, "g-1")
	if g.Status != accessgrants.StatusPending || g.Token != "ABCD-2345" {
		t.Fatalf("grant must be untouched after rollback: %+v", g)
	}
	if len(s.rels) != 0 {
		t.Fatalf("relationship must not be projected after rollback")
	}
	audit, _ := repo.ListAudit(ctx, "g-1")
	if len(audit) != 1 {
		t.Fatalf("expected only the created entry, got %d", len(audit))
	}
}

func TestAccessGrantRepo_Activate_ReleasesToken(t *testing.T) {
	s := NewStore()
	repo := NewAccessGrantRepo(s)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedGrant(t, repo, "g-1", "ABCD-2345", now)

	err := repo.WithinTx(ctx, func(ctx context.Context, tx accessgrants.Tx) error {
		return tx.Activate(ctx, "g-1", parties.Clinician("c-1"), now)
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	if exists, _ := repo.TokenExists(ctx, "ABCD-2345"); exists {
		t.Fatalf("token must be released after activation")
	}
	if _, err := repo.FindPendingByToken(ctx, "ABCD-2345", parties.RoleClinician, now); !errors.Is(err, accessgrants.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// una segunda activación pierde
	err = repo.WithinTx(ctx, func(ctx context.Context, tx accessgrants.Tx) error {
		return tx.Activate(ctx, "g-1", parties.Clinician("c-2"), now)
	})
	if !errors.Is(err, accessgrants.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	active, _ := repo.ActiveForGrantee(ctx, "child-1", parties.Clinician("c-1"))
	if len(active) != 1 {
		t.Fatalf("expected one active grant for c-1, got %d", len(active))
	}
}

func TestAccessGrantRepo_LockStalePending(t *testing.T) {
	s := NewStore()
	repo := NewAccessGrantRepo(s)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seedGrant(t, repo, "g-1", "AAAA-2222", now.Add(-3*time.Hour))
	seedGrant(t, repo, "g-2", "BBBB-3333", now.Add(-2*time.Hour))
	seedGrant(t, repo, "g-3", "CCCC-4444", now)

	var got []string
	err := repo.WithinTx(ctx, func(ctx context.Context, tx accessgrants.Tx) error {
		stale, err := tx.LockStalePending(ctx, now, 10)
		for _, g := range stale {
			got = append(got, g.ID)
		}
		return err
	})
	if err != nil {
		t.Fatalf("lock stale: %v", err)
	}
	if len(got) != 2 || got[0] != "g-1" || got[1] != "g-2" {
		t.Fatalf("expected [g-1 g-2] oldest first, got %v", got)
	}
}
