package accessgrants

import (
	"time"

	"child-development-records/internal/domain/parties"
)

type PreviewSubject struct {
	DisplayName string `json:"display_name"`
}

// Preview es lo único que ve un grantee antes de reclamar.
// No lleva token, id de grant, email del grantee ni otros grants.
type Preview struct {
	Subject        PreviewSubject `json:"subject"`
	GrantedByName  string         `json:"granted_by_name"`
	GrantorType    parties.Role   `json:"grantor_type"`
	AccessLevel    AccessLevel    `json:"access_level"`
	Permissions    []Capability   `json:"permissions"`
	TokenExpiresAt time.Time      `json:"token_expires_at"`
}

func NewPreview(g Grant, subject SubjectSummary) Preview {
	return Preview{
		Subject:        PreviewSubject{DisplayName: subject.DisplayName},
		GrantedByName:  g.GrantedByName,
		GrantorType:    g.Grantor.Role,
		AccessLevel:    g.AccessLevel,
		Permissions:    g.Permissions.Capabilities(),
		TokenExpiresAt: g.TokenExpiresAt,
	}
}
