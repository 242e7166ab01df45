package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	templates "gelato-ops/internal/templates/domain"
)

// Repository stores templates in document_templates; lines are kept as JSONB.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ templates.Repository = (*Repository)(nil)

// List returns the templates of a kind ordered by name.
func (r *Repository) List(ctx context.Context, kind templates.Kind) ([]templates.Template, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("template repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, kind, name, lines, is_default, created_at, updated_at
FROM document_templates
WHERE kind = $1
ORDER BY name, id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []templates.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tpl)
	}
	return result, rows.Err()
}

// Get returns a template; nil when absent.
func (r *Repository) Get(ctx context.Context, kind templates.Kind, id string) (*templates.Template, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("template repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, kind, name, lines, is_default, created_at, updated_at
FROM document_templates
WHERE kind = $1 AND id = $2`, string(kind), id)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tpl, nil
}

// Save inserts or replaces a template.
func (r *Repository) Save(ctx context.Context, tpl templates.Template) error {
	if r == nil || r.db == nil {
		return errors.New("template repo: nil db")
	}
	lines, err := json.Marshal(tpl.Lines)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO document_templates (id, kind, name, lines, is_default, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	lines = EXCLUDED.lines,
	is_default = EXCLUDED.is_default,
	updated_at = EXCLUDED.updated_at`,
		tpl.ID,
		string(tpl.Kind),
		tpl.Name,
		lines,
		tpl.IsDefault,
		tpl.CreatedAt.UTC(),
		tpl.UpdatedAt.UTC(),
	)
	return err
}

// Delete removes a template.
func (r *Repository) Delete(ctx context.Context, kind templates.Kind, id string) error {
	if r == nil || r.db == nil {
		return errors.New("template repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM document_templates WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return templates.ErrTemplateNotFound
	}
	return nil
}

// ClearDefault unsets the default flag of kind except on exceptID.
func (r *Repository) ClearDefault(ctx context.Context, kind templates.Kind, exceptID string) error {
	if r == nil || r.db == nil {
		return errors.New("template repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE document_templates
SET is_default = FALSE, updated_at = NOW()
WHERE kind = $1 AND is_default AND id <> $2`, string(kind), exceptID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*templates.Template, error) {
	var (
		tpl   templates.Template
		kind  string
		lines []byte
	)
	if err := row.Scan(&tpl.ID, &kind, &tpl.Name, &lines, &tpl.IsDefault, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return nil, err
	}
	tpl.Kind = templates.Kind(kind)
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &tpl.Lines); err != nil {
			return nil, err
		}
	}
	tpl.CreatedAt = tpl.CreatedAt.UTC()
	tpl.UpdatedAt = tpl.UpdatedAt.UTC()
	return &tpl, nil
}
