package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"child-development-records/internal/domain/journal"
	"child-development-records/internal/domain/parties"
)

type JournalRepo struct {
	db *sql.DB
}

func NewJournalRepo(db *sql.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

const journalColumns = `id, child_id, kind, occurred_at, recorded_at, title, notes, author_role, author_id, grant_id, status`

func (r *JournalRepo) Create(ctx context.Context, e journal.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO journal_entries (`+journalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		e.ID,
		e.ChildID,
		string(e.Kind),
		e.OccurredAt,
		e.RecordedAt,
		e.Title,
		e.Notes,
		string(e.Author.Role),
		e.Author.ID,
		toNullString(e.GrantID),
		string(e.Status),
	)
	return err
}

func (r *JournalRepo) GetByID(ctx context.Context, id string) (journal.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+journalColumns+`
		FROM journal_entries
		WHERE id = $1
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, journal.ErrNotFound
	}
	return e, err
}

func (r *JournalRepo) ListByChild(ctx context.Context, childID string, f journal.ListFilter) ([]journal.Entry, error) {
	where := []string{"child_id = $1"}
	args := []any{childID}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if len(f.Kinds) > 0 {
		kinds := make([]string, 0, len(f.Kinds))
		for _, k := range f.Kinds {
			kinds = append(kinds, string(k))
		}
		add("kind = ANY($%d)", kinds)
	}
	if f.From != nil {
		add("occurred_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("occurred_at <= $%d", *f.To)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("(title ILIKE $%[1]d OR notes ILIKE $%[1]d)", "%"+q+"%")
	}

	query := `
		SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY occurred_at DESC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]journal.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *JournalRepo) Void(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE journal_entries
		SET status = 'voided'
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return journal.ErrNotFound
	}
	return nil
}

func scanEntry(s scanner) (journal.Entry, error) {
	var e journal.Entry
	var kind, role, status string
	var grantID sql.NullString
	if err := s.Scan(
		&e.ID,
		&e.ChildID,
		&kind,
		&e.OccurredAt,
		&e.RecordedAt,
		&e.Title,
		&e.Notes,
		&role,
		&e.Author.ID,
		&grantID,
		&status,
	); err != nil {
		return journal.Entry{}, err
	}
	e.Kind = journal.Kind(kind)
	e.Author.Role = parties.Role(role)
	e.GrantID = grantID.String
	e.Status = journal.Status(status)
	return e, nil
}
