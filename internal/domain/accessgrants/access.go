package accessgrants

import (
	"context"
	"fmt"
	"strings"

	"child-development-records/internal/domain/parties"
)

// Check es la decisión de acceso para los módulos de registros:
// una relación direct activa habilita todo; si no, hace falta un grant que autorice c.
// Devuelve el id del grant usado, vacío si el acceso es por relación direct.
func (s *Service) Check(ctx context.Context, party parties.Party, subjectID string, c Capability) (string, error) {
	if !party.Valid() || strings.TrimSpace(subjectID) == "" {
		return "", ErrAccessDenied
	}
	ok, err := s.rel.HasDirect(ctx, party, subjectID)
	if err != nil {
		return "", fmt.Errorf("check relationship: %w", err)
	}
	if ok {
		return "", nil
	}
	g, err := s.Authorize(ctx, party, subjectID, c)
	if err != nil {
		return "", err
	}
	return g.ID, nil
}
