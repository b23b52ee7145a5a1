package postgres

import (
	"context"
	"database/sql"
	"errors"

	"child-development-records/internal/domain/parties"
	"child-development-records/internal/domain/relationships"
)

type RelationshipsRepo struct {
	db *sql.DB
}

func NewRelationshipsRepo(db *sql.DB) *RelationshipsRepo {
	return &RelationshipsRepo{db: db}
}

const relationshipColumns = `subject_id, party_role, party_id, kind, status, grant_id, created_at, updated_at`

// CreateDirect promueve una fila granted existente; si ya era direct devuelve ErrExists.
func (r *RelationshipsRepo) CreateDirect(ctx context.Context, v relationships.View) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO relationship_views (`+relationshipColumns+`)
		VALUES ($1,$2,$3,'direct','active',NULL,$4,$4)
		ON CONFLICT (subject_id, party_role, party_id) DO UPDATE
		SET kind = 'direct', status = 'active', updated_at = EXCLUDED.updated_at
		WHERE relationship_views.kind <> 'direct'
	`,
		v.SubjectID,
		string(v.Party.Role),
		v.Party.ID,
		v.CreatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return relationships.ErrExists
	}
	return nil
}

func (r *RelationshipsRepo) Get(ctx context.Context, subjectID string, party parties.Party) (relationships.View, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationship_views
		WHERE subject_id = $1 AND party_role = $2 AND party_id = $3
	`, subjectID, string(party.Role), party.ID)

	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return relationships.View{}, relationships.ErrNotFound
	}
	return v, err
}

func (r *RelationshipsRepo) ListBySubject(ctx context.Context, subjectID string) ([]relationships.View, error) {
	return r.list(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationship_views
		WHERE subject_id = $1
		ORDER BY created_at ASC
	`, subjectID)
}

func (r *RelationshipsRepo) ListByParty(ctx context.Context, party parties.Party) ([]relationships.View, error) {
	return r.list(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationship_views
		WHERE party_role = $1 AND party_id = $2
		ORDER BY created_at ASC
	`, string(party.Role), party.ID)
}

func (r *RelationshipsRepo) list(ctx context.Context, q string, args ...any) ([]relationships.View, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]relationships.View, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanView(s scanner) (relationships.View, error) {
	var v relationships.View
	var role, kind, status string
	var grantID sql.NullString
	if err := s.Scan(
		&v.SubjectID,
		&role,
		&v.Party.ID,
		&kind,
		&status,
		&grantID,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		return relationships.View{}, err
	}
	v.Party.Role = parties.Role(role)
	v.Kind = relationships.Kind(kind)
	v.Status = relationships.Status(status)
	v.GrantID = grantID.String
	return v, nil
}

// txProjector materializa la fila del grantee dentro de la transacción de claim.
// Misma regla que relationships.Merge: se reactiva y direct nunca se degrada.
type txProjector struct {
	tx *sql.Tx
}

func (p txProjector) Upsert(ctx context.Context, v relationships.View) error {
	_, err := p.tx.ExecContext(ctx, `
		INSERT INTO relationship_views (`+relationshipColumns+`)
		VALUES ($1,$2,$3,$4,'active',$5,$6,$6)
		ON CONFLICT (subject_id, party_role, party_id) DO UPDATE
		SET status = 'active',
		    grant_id = EXCLUDED.grant_id,
		    updated_at = EXCLUDED.updated_at,
		    kind = CASE WHEN relationship_views.kind = 'direct' THEN 'direct' ELSE EXCLUDED.kind END
	`,
		v.SubjectID,
		string(v.Party.Role),
		v.Party.ID,
		string(v.Kind),
		toNullString(v.GrantID),
		v.UpdatedAt,
	)
	return err
}
