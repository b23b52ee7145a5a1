package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"child-development-records/internal/domain/accessgrants"
	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

type AccessGrantsRepo struct {
	db *sql.DB
}

func NewAccessGrantsRepo(db *sql.DB) *AccessGrantsRepo {
	return &AccessGrantsRepo{db: db}
}

const grantColumns = `
	id, token, token_expires_at,
	grantor_role, grantor_id,
	grantee_type, grantee_role, grantee_id, grantee_email,
	subject_id, permissions, access_level, status,
	granted_at, activated_at, revoked_at, expires_at, last_accessed_at, updated_at,
	granted_by_name, granted_by_email`

// querier es lo común entre *sql.DB y *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *AccessGrantsRepo) Create(ctx context.Context, g accessgrants.Grant, created accessgrants.AuditEntry) error {
	perms, err := json.Marshal(g.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO access_grants (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		g.ID,
		toNullString(g.Token),
		g.TokenExpiresAt,
		string(g.Grantor.Role),
		g.Grantor.ID,
		string(g.GranteeType),
		toNullString(string(g.Grantee.Role)),
		toNullString(g.Grantee.ID),
		g.GranteeEmail,
		g.SubjectID,
		string(perms),
		string(g.AccessLevel),
		string(g.Status),
		g.GrantedAt,
		toNullTime(g.ActivatedAt),
		toNullTime(g.RevokedAt),
		toNullTime(g.ExpiresAt),
		toNullTime(g.LastAccessedAt),
		g.UpdatedAt,
		g.GrantedByName,
		g.GrantedByEmail,
	)
	if err != nil {
		if isUniqueViolation(err, "access_grants_token_uq") {
			return accessgrants.ErrTokenConflict
		}
		return err
	}

	if err := appendAudit(ctx, tx, created); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *AccessGrantsRepo) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM access_grants WHERE token = $1)
	`, token).Scan(&exists)
	return exists, err
}

func (r *AccessGrantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	return getGrant(ctx, r.db, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE id = $1
	`, id)
}

func (r *AccessGrantsRepo) FindPendingByToken(ctx context.Context, token string, granteeType parties.Role, now time.Time) (accessgrants.Grant, error) {
	return getGrant(ctx, r.db, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE token = $1
		  AND status = 'pending'
		  AND grantee_type = $2
		  AND token_expires_at > $3
	`, token, string(granteeType), now)
}

func (r *AccessGrantsRepo) ListByGrantor(ctx context.Context, grantor parties.Party) ([]accessgrants.Grant, error) {
	return listGrants(ctx, r.db, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE grantor_role = $1 AND grantor_id = $2
		ORDER BY granted_at DESC, id ASC
	`, string(grantor.Role), grantor.ID)
}

func (r *AccessGrantsRepo) ListByGrantee(ctx context.Context, grantee parties.Party) ([]accessgrants.Grant, error) {
	return listGrants(ctx, r.db, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE grantee_role = $1 AND grantee_id = $2
		ORDER BY granted_at DESC, id ASC
	`, string(grantee.Role), grantee.ID)
}

func (r *AccessGrantsRepo) ActiveForGrantee(ctx context.Context, subjectID string, grantee parties.Party) ([]accessgrants.Grant, error) {
	return listGrants(ctx, r.db, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE grantee_role = $1 AND grantee_id = $2
		  AND subject_id = $3
		  AND status = 'active'
		ORDER BY granted_at DESC, id ASC
	`, string(grantee.Role), grantee.ID, subjectID)
}

func (r *AccessGrantsRepo) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET last_accessed_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) ListAudit(ctx context.Context, grantID string) ([]accessgrants.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, grant_id, action, actor_role, actor_id, at, old_state, new_state
		FROM grant_audit_events
		WHERE grant_id = $1
		ORDER BY seq ASC
	`, grantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accessgrants.AuditEntry, 0)
	for rows.Next() {
		var e accessgrants.AuditEntry
		var action string
		var actorRole, actorID sql.NullString
		var oldState, newState []byte
		if err := rows.Scan(&e.ID, &e.GrantID, &action, &actorRole, &actorID, &e.At, &oldState, &newState); err != nil {
			return nil, err
		}
		e.Action = accessgrants.AuditAction(action)
		e.Actor = parties.Party{Role: parties.Role(actorRole.String), ID: actorID.String}
		if len(oldState) > 0 {
			e.Old = json.RawMessage(oldState)
		}
		if len(newState) > 0 {
			e.New = json.RawMessage(newState)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WithinTx abre una transacción; los Lock* usan SELECT ... FOR UPDATE sobre ella.
func (r *AccessGrantsRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx accessgrants.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &grantTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type grantTx struct {
	tx *sql.Tx
}

func (t *grantTx) LockByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	return getGrant(ctx, t.tx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE id = $1
		FOR UPDATE
	`, id)
}

func (t *grantTx) LockPendingByToken(ctx context.Context, token string, granteeType parties.Role) (accessgrants.Grant, error) {
	return getGrant(ctx, t.tx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE token = $1
		  AND status = 'pending'
		  AND grantee_type = $2
		FOR UPDATE
	`, token, string(granteeType))
}

func (t *grantTx) LockStalePending(ctx context.Context, now time.Time, limit int) ([]accessgrants.Grant, error) {
	return listGrants(ctx, t.tx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE status = 'pending' AND token_expires_at <= $1
		ORDER BY token_expires_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
}

func (t *grantTx) Activate(ctx context.Context, id string, grantee parties.Party, now time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE access_grants
		SET status = 'active',
		    token = NULL,
		    grantee_role = $2,
		    grantee_id = $3,
		    activated_at = $4,
		    updated_at = $4
		WHERE id = $1
		  AND status = 'pending'
		  AND token IS NOT NULL
		  AND token_expires_at > $4
	`, id, string(grantee.Role), grantee.ID, now)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrAlreadyClaimed
	}
	return nil
}

func (t *grantTx) Transition(ctx context.Context, id string, from []accessgrants.Status, to accessgrants.Status, now time.Time) error {
	fromStr := make([]string, 0, len(from))
	for _, st := range from {
		fromStr = append(fromStr, string(st))
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE access_grants
		SET status = $2,
		    token = NULL,
		    updated_at = $3,
		    revoked_at = CASE WHEN $2 = 'revoked' THEN $3 ELSE revoked_at END
		WHERE id = $1
		  AND status = ANY($4)
	`, id, string(to), now, fromStr)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrInvalidState
	}
	return nil
}

func (t *grantTx) UpdatePermissions(ctx context.Context, id string, perms accessgrants.Permissions, level accessgrants.AccessLevel, now time.Time) error {
	raw, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE access_grants
		SET permissions = $2::jsonb,
		    access_level = $3,
		    updated_at = $4
		WHERE id = $1
	`, id, string(raw), string(level), now)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return accessgrants.ErrNotFound
	}
	return nil
}

func (t *grantTx) AppendAudit(ctx context.Context, e accessgrants.AuditEntry) error {
	return appendAudit(ctx, t.tx, e)
}

func (t *grantTx) Relationships() relationships.Projector {
	return txProjector{tx: t.tx}
}

func appendAudit(ctx context.Context, q querier, e accessgrants.AuditEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO grant_audit_events (id, grant_id, action, actor_role, actor_id, at, old_state, new_state)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8::jsonb)
	`,
		e.ID,
		e.GrantID,
		string(e.Action),
		toNullString(string(e.Actor.Role)),
		toNullString(e.Actor.ID),
		e.At,
		rawJSON(e.Old),
		rawJSON(e.New),
	)
	return err
}

func rawJSON(b json.RawMessage) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func getGrant(ctx context.Context, q querier, query string, args ...any) (accessgrants.Grant, error) {
	g, err := scanGrant(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return accessgrants.Grant{}, accessgrants.ErrNotFound
	}
	return g, err
}

func listGrants(ctx context.Context, q querier, query string, args ...any) ([]accessgrants.Grant, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrant(s scanner) (accessgrants.Grant, error) {
	var (
		g                                       accessgrants.Grant
		token, granteeRole, granteeID           sql.NullString
		grantorRole, granteeType, level, status string
		perms                                   []byte
		activated, revoked, expires, lastSeen   sql.NullTime
	)
	if err := s.Scan(
		&g.ID,
		&token,
		&g.TokenExpiresAt,
		&grantorRole,
		&g.Grantor.ID,
		&granteeType,
		&granteeRole,
		&granteeID,
		&g.GranteeEmail,
		&g.SubjectID,
		&perms,
		&level,
		&status,
		&g.GrantedAt,
		&activated,
		&revoked,
		&expires,
		&lastSeen,
		&g.UpdatedAt,
		&g.GrantedByName,
		&g.GrantedByEmail,
	); err != nil {
		return accessgrants.Grant{}, err
	}
	if err := json.Unmarshal(perms, &g.Permissions); err != nil {
		return accessgrants.Grant{}, fmt.Errorf("decode permissions: %w", err)
	}

	g.Token = token.String
	g.Grantor.Role = parties.Role(grantorRole)
	g.GranteeType = parties.Role(granteeType)
	if granteeID.Valid {
		g.Grantee = parties.Party{Role: parties.Role(granteeRole.String), ID: granteeID.String}
	}
	g.AccessLevel = accessgrants.AccessLevel(level)
	g.Status = accessgrants.Status(status)
	g.ActivatedAt = fromNullTime(activated)
	g.RevokedAt = fromNullTime(revoked)
	g.ExpiresAt = fromNullTime(expires)
	g.LastAccessedAt = fromNullTime(lastSeen)
	return g, nil
}
