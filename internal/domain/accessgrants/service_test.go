package accessgrants_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	mem "child-development-records/internal/adapters/storage/memory"
	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/children"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

// -------------------------
// Fixture
// -------------------------

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc      *accessgrants.Service
	rel      *relationships.Service
	children *children.Service
	clock    *testClock

	parent  parties.Profile
	childID string
}

func newFixture(t *testing.T, opts ...accessgrants.Option) *fixture {
	t.Helper()

	store := mem.NewStore()
	rel := relationships.NewService(mem.NewRelationshipRepo(store))
	kids := children.NewService(mem.NewChildRepo(store), rel)
	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	opts = append([]accessgrants.Option{accessgrants.WithClock(clock.Now)}, opts...)
	svc := accessgrants.NewService(mem.NewAccessGrantRepo(store), rel, kids, opts...)

	parent := parties.Profile{
		Party:       parties.Parent("parent-1"),
		UserID:      "user-parent",
		Email:       "mama@example.com",
		DisplayName: "Laura Gómez",
	}
	child, err := kids.Create(context.Background(), parent.Party, children.CreateInput{FirstName: "Tomás", LastName: "Gómez"})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	return &fixture{
		svc:      svc,
		rel:      rel,
		children: kids,
		clock:    clock,
		parent:   parent,
		childID:  child.ID,
	}
}

func clinician(id, email string) parties.Profile {
	return parties.Profile{
		Party:       parties.Clinician(id),
		UserID:      "user-" + id,
		Email:       email,
		DisplayName: "Dr. " + id,
	}
}

func (f *fixture) createGrant(t *testing.T, in accessgrants.CreateInput) accessgrants.CreateResult {
	t.Helper()
	if in.SubjectID == "" {
		in.SubjectID = f.childID
	}
	if in.GranteeType == "" {
		in.GranteeType = parties.RoleClinician
	}
	res, err := f.svc.Create(context.Background(), f.parent, in)
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}
	return res
}

func (f *fixture) grant(t *testing.T, id string) accessgrants.Grant {
	t.Helper()
	items, err := f.svc.ListByGrantor(context.Background(), f.parent)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	for _, g := range items {
		if g.ID == id {
			return g
		}
	}
	t.Fatalf("grant %s not found", id)
	return accessgrants.Grant{}
}

func (f *fixture) auditActions(t *testing.T, id string) []accessgrants.AuditAction {
	t.Helper()
	entries, err := f.svc.Audit(context.Background(), f.parent, id)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	out := make([]accessgrants.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func equalActions(got []accessgrants.AuditAction, want ...accessgrants.AuditAction) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// -------------------------
// Create
// -------------------------

func TestService_Create_PendingWithTokenAndAudit(t *testing.T) {
	f := newFixture(t)

	res := f.createGrant(t, accessgrants.CreateInput{})

	if _, ok := accessgrants.NormalizeToken(res.Token); !ok {
		t.Fatalf("token %q does not look like XXXX-YYYY", res.Token)
	}
	if want := f.clock.Now().AddDate(0, 0, accessgrants.DefaultTokenTTLDays); !res.TokenExpiresAt.Equal(want) {
		t.Fatalf("expected token_expires_at %v, got %v", want, res.TokenExpiresAt)
	}

	g := f.grant(t, res.ID)
	if g.Status != accessgrants.StatusPending {
		t.Fatalf("expected pending, got %s", g.Status)
	}
	if !g.Grantee.IsZero() {
		t.Fatalf("grantee must be empty until claim, got %+v", g.Grantee)
	}
	if g.Permissions != accessgrants.DefaultPermissions() {
		t.Fatalf("expected default permissions, got %+v", g.Permissions)
	}
	if g.AccessLevel != accessgrants.AccessView {
		t.Fatalf("expected view access, got %s", g.AccessLevel)
	}
	if g.GrantedByName != f.parent.DisplayName || g.GrantedByEmail != f.parent.Email {
		t.Fatalf("grantor display data not copied: %+v", g)
	}
	if got := f.auditActions(t, res.ID); !equalActions(got, accessgrants.AuditCreated) {
		t.Fatalf("unexpected audit trail: %v", got)
	}
}

func TestService_Create_TTLFollowsConfiguredMax(t *testing.T) {
	f := newFixture(t, accessgrants.WithTokenTTL(7, 60))

	res := f.createGrant(t, accessgrants.CreateInput{TTLDays: 45})
	if want := f.clock.Now().AddDate(0, 0, 45); !res.TokenExpiresAt.Equal(want) {
		t.Fatalf("expected token_expires_at %v, got %v", want, res.TokenExpiresAt)
	}

	_, err := f.svc.Create(context.Background(), f.parent, accessgrants.CreateInput{
		SubjectID:   f.childID,
		GranteeType: parties.RoleClinician,
		TTLDays:     61,
	})
	if !errors.Is(err, accessgrants.ErrValidation) {
		t.Fatalf("expected ErrValidation above max, got %v", err)
	}
}

func TestService_Create_RequiresDirectRelationship(t *testing.T) {
	f := newFixture(t)

	stranger := parties.Profile{Party: parties.Parent("parent-2"), DisplayName: "Otro"}
	_, err := f.svc.Create(context.Background(), stranger, accessgrants.CreateInput{
		SubjectID:   f.childID,
		GranteeType: parties.RoleClinician,
	})
	if !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	past := f.clock.Now().Add(-time.Hour)

	cases := map[string]accessgrants.CreateInput{
		"missing subject":     {GranteeType: parties.RoleClinician, SubjectID: " "},
		"bad grantee type":    {SubjectID: f.childID, GranteeType: "admin"},
		"bad access level":    {SubjectID: f.childID, GranteeType: parties.RoleClinician, AccessLevel: "admin"},
		"edit notes on view":  {SubjectID: f.childID, GranteeType: parties.RoleClinician, Permissions: accessgrants.Permissions{EditNotes: true}},
		"ttl too long":        {SubjectID: f.childID, GranteeType: parties.RoleClinician, TTLDays: accessgrants.MaxTokenTTLDays + 1},
		"ttl negative":        {SubjectID: f.childID, GranteeType: parties.RoleClinician, TTLDays: -1},
		"expires in the past": {SubjectID: f.childID, GranteeType: parties.RoleClinician, ExpiresAt: &past},
		"bad email":           {SubjectID: f.childID, GranteeType: parties.RoleClinician, GranteeEmail: "not-an-email"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.parent, in)
			if !errors.Is(err, accessgrants.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_Create_TokenGenerationExhausted(t *testing.T) {
	// Fuente constante: siempre genera AAAA-AAAA.
	gen := accessgrants.NewTokenGeneratorWithSource(bytes.NewReader(make([]byte, 1<<12)), 10)
	f := newFixture(t, accessgrants.WithTokenGenerator(gen))

	first := f.createGrant(t, accessgrants.CreateInput{})
	if first.Token != "AAAA-AAAA" {
		t.Fatalf("expected AAAA-AAAA, got %s", first.Token)
	}

	_, err := f.svc.Create(context.Background(), f.parent, accessgrants.CreateInput{
		SubjectID:   f.childID,
		GranteeType: parties.RoleClinician,
	})
	if !errors.Is(err, accessgrants.ErrTokenGenerationExhausted) {
		t.Fatalf("expected ErrTokenGenerationExhausted, got %v", err)
	}
}

// -------------------------
// Validate
// -------------------------

func TestService_Validate_NormalizesAndIsReadOnly(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{})
	dr := clinician("c-1", "dr@example.com")

	inputs := []string{
		res.Token,
		strings.ToLower(res.Token),
		"  " + res.Token + "  ",
		strings.ReplaceAll(res.Token, "-", ""),
	}
	for _, in := range inputs {
		p, err := f.svc.Validate(context.Background(), dr, in)
		if err != nil {
			t.Fatalf("validate %q: %v", in, err)
		}
		if p.Subject.DisplayName != "Tomás Gómez" {
			t.Fatalf("unexpected subject name %q", p.Subject.DisplayName)
		}
		if p.GrantedByName != f.parent.DisplayName || p.GrantorType != parties.RoleParent {
			t.Fatalf("unexpected grantor in preview: %+v", p)
		}
	}

	if g := f.grant(t, res.ID); g.Status != accessgrants.StatusPending {
		t.Fatalf("validate must not change state, got %s", g.Status)
	}
}

func TestService_Validate_Failures(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{GranteeEmail: "DR@Example.com"})

	t.Run("malformed", func(t *testing.T) {
		_, err := f.svc.Validate(context.Background(), clinician("c-1", "dr@example.com"), "abc")
		if !errors.Is(err, accessgrants.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.Validate(context.Background(), clinician("c-1", "dr@example.com"), "ZZZZ-ZZZZ")
		if !errors.Is(err, accessgrants.ErrInvalidOrExpiredToken) {
			t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
		}
	})

	t.Run("wrong grantee role", func(t *testing.T) {
		other := parties.Profile{Party: parties.Parent("parent-9"), Email: "dr@example.com"}
		_, err := f.svc.Validate(context.Background(), other, res.Token)
		if !errors.Is(err, accessgrants.ErrInvalidOrExpiredToken) {
			t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
		}
	})

	t.Run("email mismatch", func(t *testing.T) {
		_, err := f.svc.Validate(context.Background(), clinician("c-2", "someone@example.com"), res.Token)
		if !errors.Is(err, accessgrants.ErrAccessDenied) {
			t.Fatalf("expected ErrAccessDenied, got %v", err)
		}
	})

	t.Run("email matches case-insensitively", func(t *testing.T) {
		if _, err := f.svc.Validate(context.Background(), clinician("c-1", " dr@example.COM "), res.Token); err != nil {
			t.Fatalf("expected ok, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		f.clock.Advance(accessgrants.DefaultTokenTTLDays * 24 * time.Hour)
		_, err := f.svc.Validate(context.Background(), clinician("c-1", "dr@example.com"), res.Token)
		if !errors.Is(err, accessgrants.ErrInvalidOrExpiredToken) {
			t.Fatalf("expected ErrInvalidOrExpiredToken at token_expires_at, got %v", err)
		}
	})
}

// -------------------------
// Claim
// -------------------------

func TestService_Claim_ActivatesAndProjectsRelationship(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{})
	dr := clinician("c-1", "dr@example.com")

	out, err := f.svc.Claim(context.Background(), dr, strings.ToLower(res.Token))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.GrantID != res.ID || out.SubjectID != f.childID {
		t.Fatalf("unexpected claim result %+v", out)
	}

	g := f.grant(t, res.ID)
	if g.Status != accessgrants.StatusActive {
		t.Fatalf("expected active, got %s", g.Status)
	}
	if g.Token != "" {
		t.Fatalf("token must be nulled after claim, got %q", g.Token)
	}
	if g.Grantee != dr.Party || g.ActivatedAt == nil {
		t.Fatalf("grantee/activated_at not set: %+v", g)
	}

	v, err := f.rel.Get(context.Background(), f.childID, dr.Party)
	if err != nil {
		t.Fatalf("relationship view: %v", err)
	}
	if v.Kind != relationships.KindGranted || v.Status != relationships.StatusActive || v.GrantID != res.ID {
		t.Fatalf("unexpected relationship view %+v", v)
	}

	if got := f.auditActions(t, res.ID); !equalActions(got, accessgrants.AuditCreated, accessgrants.AuditClaimed) {
		t.Fatalf("unexpected audit trail: %v", got)
	}

	// Un token solo sirve una vez.
	_, err = f.svc.Claim(context.Background(), clinician("c-2", ""), res.Token)
	if !errors.Is(err, accessgrants.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken on second claim, got %v", err)
	}
	if _, err := f.svc.Validate(context.Background(), dr, res.Token); !errors.Is(err, accessgrants.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken on validate after claim, got %v", err)
	}
}

func TestService_Claim_ExpiredTokenMarksGrantExpired(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{TTLDays: 1})

	f.clock.Advance(24*time.Hour + time.Second)

	_, err := f.svc.Claim(context.Background(), clinician("c-1", ""), res.Token)
	if !errors.Is(err, accessgrants.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}

	g := f.grant(t, res.ID)
	if g.Status != accessgrants.StatusExpired || g.Token != "" {
		t.Fatalf("expected expired grant without token, got status=%s token=%q", g.Status, g.Token)
	}
	if got := f.auditActions(t, res.ID); !equalActions(got, accessgrants.AuditCreated, accessgrants.AuditExpired) {
		t.Fatalf("unexpected audit trail: %v", got)
	}

	// expired es terminal
	if err := f.svc.Revoke(context.Background(), f.parent, res.ID); !errors.Is(err, accessgrants.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState revoking expired grant, got %v", err)
	}
}

func TestService_Claim_EmailBinding(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{GranteeEmail: "Paz@Example.com"})

	intruder := clinician("c-9", "attacker@evil.com")
	_, err := f.svc.Claim(context.Background(), intruder, res.Token)
	if !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := f.rel.Get(context.Background(), f.childID, intruder.Party); !errors.Is(err, relationships.ErrNotFound) {
		t.Fatalf("denied claim must not project a relationship, got %v", err)
	}
	if g := f.grant(t, res.ID); g.Status != accessgrants.StatusPending || g.Token == "" {
		t.Fatalf("denied claim must leave grant pending with token, got status=%s", g.Status)
	}

	// sin email en el perfil tampoco alcanza
	if _, err := f.svc.Claim(context.Background(), clinician("c-8", ""), res.Token); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for claimant without email, got %v", err)
	}

	dr := clinician("c-1", " paz@example.COM ")
	out, err := f.svc.Claim(context.Background(), dr, res.Token)
	if err != nil {
		t.Fatalf("claim with matching email: %v", err)
	}
	if out.GrantID != res.ID {
		t.Fatalf("unexpected claim result %+v", out)
	}
	v, err := f.rel.Get(context.Background(), f.childID, dr.Party)
	if err != nil || v.Kind != relationships.KindGranted {
		t.Fatalf("expected granted relationship, got %+v err=%v", v, err)
	}
}

func TestService_Claim_SelfClaimDenied(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{GranteeType: parties.RoleParent})

	_, err := f.svc.Claim(context.Background(), f.parent, res.Token)
	if !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if g := f.grant(t, res.ID); g.Status != accessgrants.StatusPending {
		t.Fatalf("denied claim must leave grant pending, got %s", g.Status)
	}
}

func TestService_Claim_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{})

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		invalid int
		other   []error
	)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.Claim(context.Background(), clinician(fmt.Sprintf("c-%d", i), ""), res.Token)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, accessgrants.ErrInvalidOrExpiredToken):
				invalid++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if wins != 1 || invalid != n-1 || len(other) != 0 {
		t.Fatalf("expected exactly one winner, got wins=%d invalid=%d other=%v", wins, invalid, other)
	}
	if got := f.auditActions(t, res.ID); !equalActions(got, accessgrants.AuditCreated, accessgrants.AuditClaimed) {
		t.Fatalf("unexpected audit trail: %v", got)
	}
}

// -------------------------
// Revoke / UpdatePermissions
// -------------------------

func TestService_Revoke_IsFinalAndIdempotent(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{})
	dr := clinician("c-1", "")

	if _, err := f.svc.Claim(context.Background(), dr, res.Token); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapViewDemographics); err != nil {
		t.Fatalf("expected access before revoke, got %v", err)
	}

	if err := f.svc.Revoke(context.Background(), dr, res.ID); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for non-grantor, got %v", err)
	}
	if err := f.svc.Revoke(context.Background(), f.parent, res.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := f.svc.Revoke(context.Background(), f.parent, res.ID); err != nil {
		t.Fatalf("second revoke must be a no-op, got %v", err)
	}

	g := f.grant(t, res.ID)
	if g.Status != accessgrants.StatusRevoked || g.RevokedAt == nil {
		t.Fatalf("expected revoked with revoked_at, got %+v", g)
	}
	if _, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapViewDemographics); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied after revoke, got %v", err)
	}

	// La fila de relación queda; el acceso igual se niega.
	if _, err := f.rel.Get(context.Background(), f.childID, dr.Party); err != nil {
		t.Fatalf("relationship view should remain: %v", err)
	}
	if _, err := f.svc.Check(context.Background(), dr.Party, f.childID, accessgrants.CapViewDemographics); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied from Check after revoke, got %v", err)
	}

	if got := f.auditActions(t, res.ID); !equalActions(got, accessgrants.AuditCreated, accessgrants.AuditClaimed, accessgrants.AuditRevoked) {
		t.Fatalf("unexpected audit trail: %v", got)
	}
}

func TestService_Revoke_PendingKillsToken(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{})

	if err := f.svc.Revoke(context.Background(), f.parent, res.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.svc.Claim(context.Background(), clinician("c-1", ""), res.Token); !errors.Is(err, accessgrants.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
	if err := f.svc.Revoke(context.Background(), f.parent, "missing"); !errors.Is(err, accessgrants.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_UpdatePermissions(t *testing.T) {
	f := newFixture(t)
	res := f.createGrant(t, accessgrants.CreateInput{})
	dr := clinician("c-1", "")

	perms := accessgrants.Permissions{ViewDemographics: true, EditNotes: true}
	edit := accessgrants.AccessEdit

	if _, err := f.svc.UpdatePermissions(context.Background(), f.parent, res.ID, perms, &edit); !errors.Is(err, accessgrants.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on pending grant, got %v", err)
	}

	if _, err := f.svc.Claim(context.Background(), dr, res.Token); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := f.svc.UpdatePermissions(context.Background(), f.parent, res.ID, accessgrants.Permissions{}, nil); !errors.Is(err, accessgrants.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty permissions, got %v", err)
	}
	if _, err := f.svc.UpdatePermissions(context.Background(), f.parent, res.ID, perms, nil); !errors.Is(err, accessgrants.ErrValidation) {
		t.Fatalf("expected ErrValidation for edit_notes on view grant, got %v", err)
	}
	if _, err := f.svc.UpdatePermissions(context.Background(), dr, res.ID, perms, &edit); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for grantee, got %v", err)
	}

	g, err := f.svc.UpdatePermissions(context.Background(), f.parent, res.ID, perms, &edit)
	if err != nil {
		t.Fatalf("update permissions: %v", err)
	}
	if g.Permissions != perms || g.AccessLevel != accessgrants.AccessEdit {
		t.Fatalf("unexpected grant after update: %+v", g)
	}

	if _, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapEditNotes); err != nil {
		t.Fatalf("expected edit_notes access, got %v", err)
	}
	if _, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapViewScreenings); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected view_screenings removed, got %v", err)
	}

	entries, err := f.svc.Audit(context.Background(), f.parent, res.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Action != accessgrants.AuditPermissionsUpdated || len(last.Old) == 0 || len(last.New) == 0 {
		t.Fatalf("expected permissions_updated with old/new, got %+v", last)
	}
}

// -------------------------
// Authorize / Check
// -------------------------

func TestService_Authorize(t *testing.T) {
	f := newFixture(t)
	expires := f.clock.Now().Add(48 * time.Hour)
	res := f.createGrant(t, accessgrants.CreateInput{
		Permissions: accessgrants.Permissions{ViewDemographics: true, ViewMedical: true},
		ExpiresAt:   &expires,
	})
	dr := clinician("c-1", "")

	if _, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapViewMedical); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("pending grant must not authorize, got %v", err)
	}
	if _, err := f.svc.Claim(context.Background(), dr, res.Token); err != nil {
		t.Fatalf("claim: %v", err)
	}

	g, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapViewMedical)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if g.LastAccessedAt == nil {
		t.Fatalf("expected last_accessed_at stamped")
	}
	if f.grant(t, res.ID).LastAccessedAt == nil {
		t.Fatalf("expected last_accessed_at persisted")
	}

	if _, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapViewReports); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for missing capability, got %v", err)
	}
	if _, err := f.svc.Authorize(context.Background(), clinician("c-2", "").Party, f.childID, accessgrants.CapViewMedical); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for other clinician, got %v", err)
	}

	f.clock.Advance(49 * time.Hour)
	if _, err := f.svc.Authorize(context.Background(), dr.Party, f.childID, accessgrants.CapViewMedical); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied after expires_at, got %v", err)
	}
}

func TestService_Check_DirectRelationshipBypassesGrants(t *testing.T) {
	f := newFixture(t)

	grantID, err := f.svc.Check(context.Background(), f.parent.Party, f.childID, accessgrants.CapEditNotes)
	if err != nil {
		t.Fatalf("expected direct access, got %v", err)
	}
	if grantID != "" {
		t.Fatalf("direct access must not report a grant, got %q", grantID)
	}

	if _, err := f.svc.Check(context.Background(), clinician("c-1", "").Party, f.childID, accessgrants.CapViewDemographics); !errors.Is(err, accessgrants.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

// -------------------------
// ExpireStale
// -------------------------

func TestService_ExpireStale(t *testing.T) {
	f := newFixture(t)
	short := f.createGrant(t, accessgrants.CreateInput{TTLDays: 1})
	long := f.createGrant(t, accessgrants.CreateInput{TTLDays: 10})

	f.clock.Advance(2 * 24 * time.Hour)

	n, err := f.svc.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("expire stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	if g := f.grant(t, short.ID); g.Status != accessgrants.StatusExpired {
		t.Fatalf("expected short grant expired, got %s", g.Status)
	}
	if g := f.grant(t, long.ID); g.Status != accessgrants.StatusPending {
		t.Fatalf("expected long grant pending, got %s", g.Status)
	}

	entries, err := f.svc.Audit(context.Background(), f.parent, short.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if last := entries[len(entries)-1]; last.Action != accessgrants.AuditExpired || !last.Actor.IsZero() {
		t.Fatalf("expected system expired entry, got %+v", last)
	}

	if n, _ := f.svc.ExpireStale(context.Background()); n != 0 {
		t.Fatalf("second sweep must be a no-op, got %d", n)
	}
}
