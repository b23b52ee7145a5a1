package accessgrants

import (
	"encoding/json"
	"testing"
	"time"

	"child-development-records/internal/domain/parties"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPreview_ExposesOnlyDisplayFields(t *testing.T) {
	exp := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	g := Grant{
		ID:             "grant-1",
		Token:          "AB23-7K9M",
		TokenExpiresAt: exp,
		Grantor:        parties.Parent("parent-1"),
		GranteeType:    parties.RoleClinician,
		GranteeEmail:   "dr@example.com",
		SubjectID:      "child-1",
		Permissions:    Permissions{ViewDemographics: true, ViewReports: true},
		AccessLevel:    AccessView,
		Status:         StatusPending,
		GrantedByName:  "Laura Gómez",
		GrantedByEmail: "mama@example.com",
	}

	p := NewPreview(g, SubjectSummary{ID: "child-1", DisplayName: "Tomás Gómez"})

	assert.Equal(t, "Tomás Gómez", p.Subject.DisplayName)
	assert.Equal(t, "Laura Gómez", p.GrantedByName)
	assert.Equal(t, parties.RoleParent, p.GrantorType)
	assert.Equal(t, AccessView, p.AccessLevel)
	assert.Equal(t, []Capability{CapViewDemographics, CapViewReports}, p.Permissions)
	assert.True(t, p.TokenExpiresAt.Equal(exp))

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	body := string(raw)
	for _, secret := range []string{"AB23-7K9M", "grant-1", "dr@example.com", "mama@example.com", "child-1"} {
		assert.NotContains(t, body, secret)
	}
}

func TestGrant_TokenUsableBoundary(t *testing.T) {
	exp := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	g := Grant{Token: "AB23-7K9M", TokenExpiresAt: exp, Status: StatusPending}

	assert.True(t, g.TokenUsable(exp.Add(-time.Nanosecond)))
	assert.False(t, g.TokenUsable(exp))
	assert.Equal(t, StatusPending, g.EffectiveStatus(exp.Add(-time.Nanosecond)))
	assert.Equal(t, StatusExpired, g.EffectiveStatus(exp))

	g.Status = StatusActive
	g.Token = ""
	assert.False(t, g.TokenUsable(exp.Add(-time.Hour)))
	assert.Equal(t, StatusActive, g.EffectiveStatus(exp.Add(time.Hour)))
}

func TestPermissions(t *testing.T) {
	assert.True(t, Permissions{}.IsZero())
	assert.False(t, DefaultPermissions().IsZero())
	assert.Equal(t,
		[]Capability{CapViewDemographics, CapViewScreenings, CapViewAssessments},
		DefaultPermissions().Capabilities(),
	)
	assert.False(t, Permissions{EditNotes: true}.Allows("delete_everything"))
}
