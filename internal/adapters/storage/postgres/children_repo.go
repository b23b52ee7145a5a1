package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"child-development-records/internal/domain/children"
	"child-development-records/internal/domain/parties"
)

type ChildrenRepo struct {
	db *sql.DB
}

func NewChildrenRepo(db *sql.DB) *ChildrenRepo {
	return &ChildrenRepo{db: db}
}

func (r *ChildrenRepo) Create(ctx context.Context, c children.Child) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO children (
			id, first_name, last_name, birth_date, notes,
			created_by_role, created_by_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		c.ID,
		c.FirstName,
		c.LastName,
		toNullTime(c.BirthDate),
		c.Notes,
		string(c.CreatedBy.Role),
		c.CreatedBy.ID,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *ChildrenRepo) Update(ctx context.Context, c children.Child) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE children
		SET
			first_name = $2,
			last_name = $3,
			birth_date = $4,
			notes = $5,
			updated_at = $6
		WHERE id = $1
	`,
		c.ID,
		c.FirstName,
		c.LastName,
		toNullTime(c.BirthDate),
		c.Notes,
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return children.ErrNotFound
	}
	return nil
}

func (r *ChildrenRepo) GetByID(ctx context.Context, id string) (children.Child, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return children.Child{}, children.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, first_name, last_name, birth_date, notes,
			created_by_role, created_by_id,
			created_at, updated_at
		FROM children
		WHERE id = $1
	`, id)

	var c children.Child
	var birth sql.NullTime
	var role string
	if err := row.Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&birth,
		&c.Notes,
		&role,
		&c.CreatedBy.ID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return children.Child{}, children.ErrNotFound
		}
		return children.Child{}, err
	}
	c.BirthDate = fromNullTime(birth)
	c.CreatedBy.Role = parties.Role(role)
	return c, nil
}
