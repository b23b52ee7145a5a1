package children

import (
	"strings"
	"time"

	"child-development-records/internal/domain/parties"
)

// Child es el sujeto de los registros y de los grants de acceso.
type Child struct {
	ID string

	FirstName string
	LastName  string
	BirthDate *time.Time

	Notes string

	// CreatedBy es el perfil que dio de alta el registro; recibe relación direct.
	CreatedBy parties.Party

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Child) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
