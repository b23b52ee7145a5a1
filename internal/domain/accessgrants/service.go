package accessgrants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
	"child-development-records/internal/platform/logger"

	"github.com/google/uuid"
)

const (
	DefaultTokenTTLDays = 7
	MaxTokenTTLDays     = 30

	// Reintentos del insert cuando el índice único gana la carrera al pre-chequeo.
	defaultInsertAttempts = 3

	staleBatchSize = 100
)

type Service struct {
	repo     Repository
	rel      RelationshipChecker
	subjects SubjectDirectory

	tokens *TokenGenerator
	log    logger.Logger
	tel    *instruments
	now    func() time.Time

	defaultTTLDays int
	maxTTLDays     int
	insertAttempts int
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithTokenGenerator(g *TokenGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.tokens = g
		}
	}
}

// WithTokenTTL fija el TTL por defecto y el máximo aceptado, en días.
func WithTokenTTL(defaultDays, maxDays int) Option {
	return func(s *Service) {
		if maxDays > 0 {
			s.maxTTLDays = maxDays
		}
		if defaultDays > 0 {
			s.defaultTTLDays = defaultDays
		}
		if s.defaultTTLDays > s.maxTTLDays {
			s.defaultTTLDays = s.maxTTLDays
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, rel RelationshipChecker, subjects SubjectDirectory, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		rel:            rel,
		subjects:       subjects,
		tokens:         NewTokenGenerator(),
		log:            logger.Nop(),
		tel:            newInstruments(),
		now:            time.Now,
		defaultTTLDays: DefaultTokenTTLDays,
		maxTTLDays:     MaxTokenTTLDays,
		insertAttempts: defaultInsertAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(map[string]any{"component": "accessgrants"})
	return s
}

type CreateInput struct {
	SubjectID    string
	GranteeType  parties.Role
	GranteeEmail string

	// Permissions vacío => DefaultPermissions.
	Permissions Permissions
	// AccessLevel vacío => view.
	AccessLevel AccessLevel

	// TTLDays 0 => default del servicio.
	TTLDays   int
	ExpiresAt *time.Time
}

type CreateResult struct {
	ID             string
	Token          string
	TokenExpiresAt time.Time
}

// Create emite un grant pending con token nuevo. El grantor debe tener
// una relación direct y activa con el sujeto.
func (s *Service) Create(ctx context.Context, grantor parties.Profile, in CreateInput) (CreateResult, error) {
	ctx, span := s.tel.start(ctx, "accessgrants.Create")
	defer span.End()

	if !grantor.Valid() {
		return CreateResult{}, fmt.Errorf("%w: grantor required", ErrValidation)
	}
	subjectID := strings.TrimSpace(in.SubjectID)
	if subjectID == "" {
		return CreateResult{}, fmt.Errorf("%w: subject_id required", ErrValidation)
	}
	if !in.GranteeType.Valid() {
		return CreateResult{}, fmt.Errorf("%w: grantee_type must be parent or clinician", ErrValidation)
	}

	level := in.AccessLevel
	if level == "" {
		level = AccessView
	}
	if level != AccessView && level != AccessEdit {
		return CreateResult{}, fmt.Errorf("%w: access_level must be view or edit", ErrValidation)
	}

	perms := in.Permissions
	if perms.IsZero() {
		perms = DefaultPermissions()
	}
	if perms.EditNotes && level != AccessEdit {
		return CreateResult{}, fmt.Errorf("%w: edit_notes requires access_level edit", ErrValidation)
	}

	ttlDays := in.TTLDays
	if ttlDays == 0 {
		ttlDays = s.defaultTTLDays
	}
	if ttlDays < 1 || ttlDays > s.maxTTLDays {
		return CreateResult{}, fmt.Errorf("%w: ttl_days must be between 1 and %d", ErrValidation, s.maxTTLDays)
	}

	email := parties.NormalizeEmail(in.GranteeEmail)
	if email != "" && !strings.Contains(email, "@") {
		return CreateResult{}, fmt.Errorf("%w: grantee_email is not an email", ErrValidation)
	}

	now := s.now().UTC()

	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return CreateResult{}, fmt.Errorf("%w: expires_at must be in the future", ErrValidation)
		}
		t := in.ExpiresAt.UTC()
		expiresAt = &t
	}

	ok, err := s.rel.HasDirect(ctx, grantor.Party, subjectID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("check relationship: %w", err)
	}
	if !ok {
		return CreateResult{}, ErrAccessDenied
	}

	g := Grant{
		ID:             uuid.NewString(),
		TokenExpiresAt: now.AddDate(0, 0, ttlDays),
		Grantor:        grantor.Party,
		GranteeType:    in.GranteeType,
		GranteeEmail:   email,
		SubjectID:      subjectID,
		Permissions:    perms,
		AccessLevel:    level,
		Status:         StatusPending,
		GrantedAt:      now,
		ExpiresAt:      expiresAt,
		UpdatedAt:      now,
		GrantedByName:  grantor.DisplayName,
		GrantedByEmail: grantor.Email,
	}

	for attempt := 0; attempt < s.insertAttempts; attempt++ {
		token, err := s.tokens.GenerateUnique(ctx, s.repo)
		if err != nil {
			if errors.Is(err, ErrTokenGenerationExhausted) {
				s.tel.exhausted.Add(ctx, 1)
				s.log.Error("token generation exhausted", map[string]any{
					"subject_id": subjectID,
					"grantor":    grantor.Party.String(),
				})
			}
			return CreateResult{}, err
		}
		g.Token = token

		created := AuditEntry{
			ID:      uuid.NewString(),
			GrantID: g.ID,
			Action:  AuditCreated,
			Actor:   grantor.Party,
			At:      now,
			New:     snapshot(g),
		}
		err = s.repo.Create(ctx, g, created)
		if err == nil {
			s.tel.created.Add(ctx, 1)
			s.log.Info("access grant created", map[string]any{
				"grant_id":     g.ID,
				"subject_id":   g.SubjectID,
				"grantor":      g.Grantor.String(),
				"grantee_type": string(g.GranteeType),
			})
			return CreateResult{ID: g.ID, Token: g.Token, TokenExpiresAt: g.TokenExpiresAt}, nil
		}
		if !errors.Is(err, ErrTokenConflict) {
			return CreateResult{}, fmt.Errorf("insert grant: %w", err)
		}
		s.log.Warn("token collided on insert, retrying", map[string]any{"grant_id": g.ID, "attempt": attempt + 1})
	}

	s.tel.exhausted.Add(ctx, 1)
	s.log.Error("token generation exhausted", map[string]any{"grant_id": g.ID, "reason": "insert conflicts"})
	return CreateResult{}, fmt.Errorf("%w: insert conflicts", ErrTokenGenerationExhausted)
}

// Validate es de solo lectura: no marca nada como expirado ni reclamado.
func (s *Service) Validate(ctx context.Context, claimant parties.Profile, rawToken string) (Preview, error) {
	ctx, span := s.tel.start(ctx, "accessgrants.Validate")
	defer span.End()

	token, ok := NormalizeToken(rawToken)
	if !ok {
		return Preview{}, fmt.Errorf("%w: token must look like XXXX-YYYY", ErrValidation)
	}
	if !claimant.Valid() {
		return Preview{}, fmt.Errorf("%w: claimant required", ErrValidation)
	}

	g, err := s.repo.FindPendingByToken(ctx, token, claimant.Role, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Preview{}, ErrInvalidOrExpiredToken
		}
		return Preview{}, fmt.Errorf("lookup token: %w", err)
	}
	if err := checkClaimant(g, claimant); err != nil {
		return Preview{}, err
	}

	subject, err := s.subjects.Summary(ctx, g.SubjectID)
	if err != nil {
		return Preview{}, fmt.Errorf("subject summary: %w", err)
	}
	return NewPreview(g, subject), nil
}

type ClaimResult struct {
	GrantID   string
	SubjectID string
}

// Claim activa el grant y materializa la relación del grantee en una sola transacción.
// Si el token resulta vencido, el grant queda expired y se devuelve ErrInvalidOrExpiredToken.
func (s *Service) Claim(ctx context.Context, claimant parties.Profile, rawToken string) (ClaimResult, error) {
	ctx, span := s.tel.start(ctx, "accessgrants.Claim")
	defer span.End()

	token, ok := NormalizeToken(rawToken)
	if !ok {
		return ClaimResult{}, fmt.Errorf("%w: token must look like XXXX-YYYY", ErrValidation)
	}
	if !claimant.Valid() {
		return ClaimResult{}, fmt.Errorf("%w: claimant required", ErrValidation)
	}

	var (
		res     ClaimResult
		expired string
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		g, err := tx.LockPendingByToken(ctx, token, claimant.Role)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}

		if !g.TokenUsable(now) {
			if err := expire(ctx, tx, g, now); err != nil {
				return err
			}
			expired = g.ID
			return nil
		}

		if err := checkClaimant(g, claimant); err != nil {
			return err
		}

		if err := tx.Activate(ctx, g.ID, claimant.Party, now); err != nil {
			return err
		}

		before := snapshot(g)
		g.Status = StatusActive
		g.Token = ""
		g.Grantee = claimant.Party
		g.ActivatedAt = &now
		g.UpdatedAt = now

		err = tx.Relationships().Upsert(ctx, relationships.View{
			SubjectID: g.SubjectID,
			Party:     claimant.Party,
			Kind:      relationships.KindGranted,
			Status:    relationships.StatusActive,
			GrantID:   g.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("project relationship: %w", err)
		}

		err = tx.AppendAudit(ctx, AuditEntry{
			ID:      uuid.NewString(),
			GrantID: g.ID,
			Action:  AuditClaimed,
			Actor:   claimant.Party,
			At:      now,
			Old:     before,
			New:     snapshot(g),
		})
		if err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		res = ClaimResult{GrantID: g.ID, SubjectID: g.SubjectID}
		return nil
	})

	switch {
	case err == nil && expired != "":
		s.tel.claim(ctx, "expired")
		s.log.Info("access grant expired on claim", map[string]any{"grant_id": expired})
		return ClaimResult{}, ErrInvalidOrExpiredToken
	case err == nil:
		s.tel.claim(ctx, "claimed")
		s.log.Info("access grant claimed", map[string]any{
			"grant_id":   res.GrantID,
			"subject_id": res.SubjectID,
			"grantee":    claimant.Party.String(),
		})
		return res, nil
	case errors.Is(err, ErrAlreadyClaimed):
		s.tel.claim(ctx, "already_claimed")
		s.log.Warn("access grant claim lost race", map[string]any{"grantee": claimant.Party.String()})
		return ClaimResult{}, fmt.Errorf("%w: %w", ErrInvalidOrExpiredToken, ErrAlreadyClaimed)
	case errors.Is(err, ErrInvalidOrExpiredToken):
		s.tel.claim(ctx, "invalid")
		return ClaimResult{}, err
	case errors.Is(err, ErrAccessDenied):
		s.tel.claim(ctx, "denied")
		return ClaimResult{}, err
	default:
		s.tel.claim(ctx, "error")
		return ClaimResult{}, fmt.Errorf("claim grant: %w", err)
	}
}

// Revoke es idempotente sobre grants ya revocados. La fila de relación
// del grantee no se toca: el acceso se decide siempre contra el grant.
func (s *Service) Revoke(ctx context.Context, grantor parties.Profile, grantID string) error {
	ctx, span := s.tel.start(ctx, "accessgrants.Revoke")
	defer span.End()

	grantID = strings.TrimSpace(grantID)
	if grantID == "" || !grantor.Valid() {
		return fmt.Errorf("%w: grant id required", ErrValidation)
	}

	revoked := false
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		g, err := tx.LockByID(ctx, grantID)
		if err != nil {
			return err
		}
		if g.Grantor != grantor.Party {
			return ErrAccessDenied
		}

		switch g.Status {
		case StatusRevoked:
			return nil
		case StatusExpired:
			return fmt.Errorf("%w: grant already expired", ErrInvalidState)
		}

		now := s.now().UTC()
		if err := tx.Transition(ctx, g.ID, []Status{StatusPending, StatusActive}, StatusRevoked, now); err != nil {
			return err
		}

		before := snapshot(g)
		g.Status = StatusRevoked
		g.Token = ""
		g.RevokedAt = &now

		revoked = true
		return tx.AppendAudit(ctx, AuditEntry{
			ID:      uuid.NewString(),
			GrantID: g.ID,
			Action:  AuditRevoked,
			Actor:   grantor.Party,
			At:      now,
			Old:     before,
			New:     snapshot(g),
		})
	})
	if err != nil {
		return err
	}

	if revoked {
		s.log.Info("access grant revoked", map[string]any{"grant_id": grantID, "grantor": grantor.Party.String()})
	}
	return nil
}

// UpdatePermissions reemplaza permisos (y opcionalmente el nivel) de un grant active.
func (s *Service) UpdatePermissions(ctx context.Context, grantor parties.Profile, grantID string, perms Permissions, level *AccessLevel) (Grant, error) {
	ctx, span := s.tel.start(ctx, "accessgrants.UpdatePermissions")
	defer span.End()

	grantID = strings.TrimSpace(grantID)
	if grantID == "" || !grantor.Valid() {
		return Grant{}, fmt.Errorf("%w: grant id required", ErrValidation)
	}
	if perms.IsZero() {
		return Grant{}, fmt.Errorf("%w: at least one permission required, revoke the grant instead", ErrValidation)
	}
	if level != nil && *level != AccessView && *level != AccessEdit {
		return Grant{}, fmt.Errorf("%w: access_level must be view or edit", ErrValidation)
	}

	var out Grant
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		g, err := tx.LockByID(ctx, grantID)
		if err != nil {
			return err
		}
		if g.Grantor != grantor.Party {
			return ErrAccessDenied
		}
		if g.Status != StatusActive {
			return fmt.Errorf("%w: only active grants can be updated", ErrInvalidState)
		}

		newLevel := g.AccessLevel
		if level != nil {
			newLevel = *level
		}
		if perms.EditNotes && newLevel != AccessEdit {
			return fmt.Errorf("%w: edit_notes requires access_level edit", ErrValidation)
		}

		now := s.now().UTC()
		if err := tx.UpdatePermissions(ctx, g.ID, perms, newLevel, now); err != nil {
			return err
		}

		before := snapshot(g)
		g.Permissions = perms
		g.AccessLevel = newLevel
		g.UpdatedAt = now

		if err := tx.AppendAudit(ctx, AuditEntry{
			ID:      uuid.NewString(),
			GrantID: g.ID,
			Action:  AuditPermissionsUpdated,
			Actor:   grantor.Party,
			At:      now,
			Old:     before,
			New:     snapshot(g),
		}); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return Grant{}, err
	}
	return out, nil
}

func (s *Service) ListByGrantor(ctx context.Context, grantor parties.Profile) ([]Grant, error) {
	if !grantor.Valid() {
		return nil, ErrValidation
	}
	return s.repo.ListByGrantor(ctx, grantor.Party)
}

func (s *Service) ListByGrantee(ctx context.Context, grantee parties.Profile) ([]Grant, error) {
	if !grantee.Valid() {
		return nil, ErrValidation
	}
	return s.repo.ListByGrantee(ctx, grantee.Party)
}

// Audit lista la historia de un grant; solo el grantor puede verla.
func (s *Service) Audit(ctx context.Context, grantor parties.Profile, grantID string) ([]AuditEntry, error) {
	grantID = strings.TrimSpace(grantID)
	if grantID == "" || !grantor.Valid() {
		return nil, ErrValidation
	}
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if g.Grantor != grantor.Party {
		return nil, ErrAccessDenied
	}
	return s.repo.ListAudit(ctx, g.ID)
}

// Authorize decide acceso derivado de grants: hace falta un grant active,
// sin vencer y con la capability pedida. Una fila de relación granted no alcanza.
func (s *Service) Authorize(ctx context.Context, party parties.Party, subjectID string, c Capability) (Grant, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" || !party.Valid() {
		return Grant{}, ErrAccessDenied
	}

	items, err := s.repo.ActiveForGrantee(ctx, subjectID, party)
	if err != nil {
		return Grant{}, fmt.Errorf("load grants: %w", err)
	}

	now := s.now().UTC()
	for _, g := range items {
		if g.Status != StatusActive || g.AccessExpired(now) {
			continue
		}
		if !g.Permissions.Allows(c) {
			continue
		}
		if c == CapEditNotes && g.AccessLevel != AccessEdit {
			continue
		}
		// best-effort: el acceso no depende de este sello
		if err := s.repo.TouchLastAccessed(ctx, g.ID, now); err != nil {
			s.log.Warn("touch last accessed failed", map[string]any{"grant_id": g.ID, "error": err.Error()})
		} else {
			g.LastAccessedAt = &now
		}
		return g, nil
	}
	return Grant{}, ErrAccessDenied
}

// ExpireStale marca expired los pending con token vencido. Es higiene:
// Validate y Claim ya tratan esos tokens como inválidos sin esperar al sweep.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := s.tel.start(ctx, "accessgrants.ExpireStale")
	defer span.End()

	total := 0
	for {
		n := 0
		err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			now := s.now().UTC()
			stale, err := tx.LockStalePending(ctx, now, staleBatchSize)
			if err != nil {
				return err
			}
			for _, g := range stale {
				if err := expire(ctx, tx, g, now); err != nil {
					return err
				}
			}
			n = len(stale)
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("expire stale grants: %w", err)
		}
		total += n
		if n < staleBatchSize {
			return total, nil
		}
	}
}

// expire pasa pending -> expired con actor system.
func expire(ctx context.Context, tx Tx, g Grant, now time.Time) error {
	if err := tx.Transition(ctx, g.ID, []Status{StatusPending}, StatusExpired, now); err != nil {
		return err
	}
	before := snapshot(g)
	g.Status = StatusExpired
	g.Token = ""
	return tx.AppendAudit(ctx, AuditEntry{
		ID:      uuid.NewString(),
		GrantID: g.ID,
		Action:  AuditExpired,
		At:      now,
		Old:     before,
		New:     snapshot(g),
	})
}

// checkClaimant aplica las reglas de identidad comunes a Validate y Claim.
func checkClaimant(g Grant, claimant parties.Profile) error {
	if g.Grantor == claimant.Party {
		return ErrAccessDenied
	}
	if g.GranteeEmail != "" && !strings.EqualFold(g.GranteeEmail, parties.NormalizeEmail(claimant.Email)) {
		return ErrAccessDenied
	}
	return nil
}
