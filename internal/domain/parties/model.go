package parties

import (
	"strings"
	"time"
)

// Role es el rol con el que actúa una identidad (grantor, grantee, actor de auditoría).
type Role string

const (
	RoleParent    Role = "parent"
	RoleClinician Role = "clinician"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleParent:
		return RoleParent, true
	case RoleClinician:
		return RoleClinician, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleClinician
}

// Party identifica a un padre o a un clínico por su id de perfil (scoped por rol).
// Nunca contiene el user id del IAM.
type Party struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}

func Parent(id string) Party    { return Party{Role: RoleParent, ID: id} }
func Clinician(id string) Party { return Party{Role: RoleClinician, ID: id} }

func (p Party) IsZero() bool {
	return p.Role == "" && p.ID == ""
}

func (p Party) Valid() bool {
	return p.Role.Valid() && strings.TrimSpace(p.ID) != ""
}

func (p Party) String() string {
	return string(p.Role) + ":" + p.ID
}

// Profile es la identidad por rol de un usuario autenticado.
// Un usuario puede tener como máximo un perfil por rol.
type Profile struct {
	Party

	UserID      string
	Email       string
	DisplayName string

	CreatedAt time.Time
}
