package memory

import (
	"sync"

	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/children"
	"child-development-records/internal/domain/journal"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

// Store es el estado en memoria compartido por todos los repos.
// Un único mutex cubre todo: las unidades de trabajo de grants (WithinTx)
// lo toman completo y ven un estado consistente entre tablas.
type Store struct {
	mu sync.RWMutex

	profiles map[string]parties.Profile // key: role:id
	children map[string]children.Child
	journal  map[string]journal.Entry

	rels map[relKey]relationships.View

	grants map[string]accessgrants.Grant
	tokens map[string]string // token vivo -> grant id (índice único)
	audit  []accessgrants.AuditEntry
}

func NewStore() *Store {
	return &Store{
		profiles: make(map[string]parties.Profile),
		children: make(map[string]children.Child),
		journal:  make(map[string]journal.Entry),
		rels:     make(map[relKey]relationships.View),
		grants:   make(map[string]accessgrants.Grant),
		tokens:   make(map[string]string),
	}
}

type relKey struct {
	subjectID string
	role      parties.Role
	partyID   string
}

func keyOf(subjectID string, p parties.Party) relKey {
	return relKey{subjectID: subjectID, role: p.Role, partyID: p.ID}
}
