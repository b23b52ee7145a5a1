package postgres

import (
	"context"
	"database/sql"
	"errors"

	"child-development-records/internal/domain/parties"
)

type ProfilesRepo struct {
	db *sql.DB
}

func NewProfilesRepo(db *sql.DB) *ProfilesRepo {
	return &ProfilesRepo{db: db}
}

const profileColumns = `id, role, user_id, email, display_name, created_at`

func (r *ProfilesRepo) Create(ctx context.Context, p parties.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		p.ID,
		string(p.Role),
		p.UserID,
		p.Email,
		p.DisplayName,
		p.CreatedAt,
	)
	if isUniqueViolation(err, "profiles_user_role_uq") {
		return parties.ErrProfileExists
	}
	return err
}

func (r *ProfilesRepo) GetByUser(ctx context.Context, userID string, role parties.Role) (parties.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id = $1 AND role = $2
	`, userID, string(role))
	return scanProfile(row)
}

func (r *ProfilesRepo) GetByParty(ctx context.Context, party parties.Party) (parties.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE id = $1 AND role = $2
	`, party.ID, string(party.Role))
	return scanProfile(row)
}

func (r *ProfilesRepo) ListByUser(ctx context.Context, userID string) ([]parties.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id = $1
		ORDER BY role ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]parties.Profile, 0, 2)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(s scanner) (parties.Profile, error) {
	var p parties.Profile
	var role string
	if err := s.Scan(&p.ID, &role, &p.UserID, &p.Email, &p.DisplayName, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return parties.Profile{}, parties.ErrNotFound
		}
		return parties.Profile{}, err
	}
	p.Role = parties.Role(role)
	return p, nil
}
