package children_test

import (
	"context"
	"errors"
	"testing"
	"time"

	mem "child-development-records/internal/adapters/storage/memory"
	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/children"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

// allowList autoriza solo los sujetos indicados.
type allowList map[string]bool

func (a allowList) Check(ctx context.Context, party parties.Party, subjectID string, c accessgrants.Capability) (string, error) {
	if a[subjectID] {
		return "g-" + subjectID, nil
	}
	return "", accessgrants.ErrAccessDenied
}

func newServices() (*children.Service, *relationships.Service, *mem.Store) {
	store := mem.NewStore()
	rel := relationships.NewService(mem.NewRelationshipRepo(store))
	return children.NewService(mem.NewChildRepo(store), rel), rel, store
}

func TestService_Create_LinksCreator(t *testing.T) {
	svc, rel, _ := newServices()
	ctx := context.Background()
	mom := parties.Parent("p-1")

	c, err := svc.Create(ctx, mom, children.CreateInput{FirstName: " Tomás ", LastName: "Gómez"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.FirstName != "Tomás" || c.DisplayName() != "Tomás Gómez" || c.CreatedBy != mom {
		t.Fatalf("unexpected child: %+v", c)
	}

	ok, err := rel.HasDirect(ctx, mom, c.ID)
	if err != nil || !ok {
		t.Fatalf("creator must get a direct relationship, ok=%v err=%v", ok, err)
	}

	sum, err := svc.Summary(ctx, c.ID)
	if err != nil || sum.DisplayName != "Tomás Gómez" || sum.ID != c.ID {
		t.Fatalf("unexpected summary: %+v err=%v", sum, err)
	}
}

func TestService_Create_InvalidInput(t *testing.T) {
	svc, _, _ := newServices()
	ctx := context.Background()
	future := time.Now().Add(48 * time.Hour)

	cases := []struct {
		name    string
		creator parties.Party
		in      children.CreateInput
	}{
		{"sin creador", parties.Party{}, children.CreateInput{FirstName: "Tomás"}},
		{"sin nombre", parties.Parent("p-1"), children.CreateInput{FirstName: "  "}},
		{"nacimiento futuro", parties.Parent("p-1"), children.CreateInput{FirstName: "Tomás", BirthDate: &future}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.creator, tc.in); !errors.Is(err, children.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestService_Update(t *testing.T) {
	svc, _, _ := newServices()
	ctx := context.Background()

	c, err := svc.Create(ctx, parties.Parent("p-1"), children.CreateInput{FirstName: "Tomás"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	last := "Gómez"
	bd := time.Date(2021, 4, 10, 0, 0, 0, 0, time.UTC)
	got, err := svc.Update(ctx, c.ID, children.UpdateInput{LastName: &last, BirthDateSet: true, BirthDate: &bd})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.LastName != "Gómez" || got.BirthDate == nil || !got.BirthDate.Equal(bd) || got.FirstName != "Tomás" {
		t.Fatalf("unexpected update: %+v", got)
	}

	empty := " "
	if _, err := svc.Update(ctx, c.ID, children.UpdateInput{FirstName: &empty}); !errors.Is(err, children.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if _, err := svc.Update(ctx, "missing", children.UpdateInput{LastName: &last}); !errors.Is(err, children.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListVisible(t *testing.T) {
	svc, _, store := newServices()
	ctx := context.Background()
	mom := parties.Parent("p-1")
	dr := parties.Clinician("c-1")

	own, err := svc.Create(ctx, dr, children.CreateInput{FirstName: "Propio"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	shared, err := svc.Create(ctx, mom, children.CreateInput{FirstName: "Compartido"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	revoked, err := svc.Create(ctx, mom, children.CreateInput{FirstName: "Revocado"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// filas granted materializadas por claims previos
	grants := mem.NewAccessGrantRepo(store)
	for _, id := range []string{shared.ID, revoked.ID} {
		err := grants.WithinTx(ctx, func(ctx context.Context, tx accessgrants.Tx) error {
			now := time.Now()
			return tx.Relationships().Upsert(ctx, relationships.View{
				SubjectID: id,
				Party:     dr,
				Kind:      relationships.KindGranted,
				Status:    relationships.StatusActive,
				GrantID:   "g-" + id,
				CreatedAt: now,
				UpdatedAt: now,
			})
		})
		if err != nil {
			t.Fatalf("project: %v", err)
		}
	}

	items, err := svc.ListVisible(ctx, dr, allowList{shared.ID: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected own + shared, got %d", len(items))
	}

	seen := map[string]relationships.Kind{}
	for _, it := range items {
		seen[it.Child.ID] = it.Kind
	}
	if seen[own.ID] != relationships.KindDirect || seen[shared.ID] != relationships.KindGranted {
		t.Fatalf("unexpected visibility: %v", seen)
	}
	if _, ok := seen[revoked.ID]; ok {
		t.Fatalf("granted row without a live grant must be hidden")
	}
}
