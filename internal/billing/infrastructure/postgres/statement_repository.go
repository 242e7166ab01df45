package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	billing "gelato-ops/internal/billing/domain"
)

const statementColumns = `id, client_id, statement_month, total_amount, date_generated, aging_category, updated_at`

// StatementRepository persists monthly client statements.
type StatementRepository struct {
	db *sql.DB
}

// NewStatementRepository constructs a repository.
func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

var _ billing.StatementRepository = (*StatementRepository)(nil)

// FindByClientMonth returns the statement for a client and month, if any.
func (r *StatementRepository) FindByClientMonth(ctx context.Context, clientID string, month time.Time) (*billing.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+statementColumns+`
FROM statements
WHERE client_id = $1 AND statement_month = $2
LIMIT 1`, clientID, billing.MonthStart(month))
	return scanStatement(row)
}

// CreateOrGet inserts a statement, or returns the one that already holds the
// (client, month) slot. The boolean reports whether this call inserted it.
func (r *StatementRepository) CreateOrGet(ctx context.Context, stmt billing.Statement) (*billing.Statement, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, errors.New("statement repo: nil db")
	}
	if stmt.ClientID == "" {
		return nil, false, billing.ErrEmptyClientID
	}
	if stmt.StatementMonth.IsZero() {
		return nil, false, billing.ErrInvalidMonth
	}
	if stmt.AgingCategory == "" {
		stmt.AgingCategory = billing.DefaultAgingCategory
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO statements (
	id, client_id, statement_month, total_amount, date_generated, aging_category, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (client_id, statement_month) DO UPDATE
SET updated_at = statements.updated_at
RETURNING `+statementColumns+`, (xmax = 0) AS inserted`,
		stmt.ID, stmt.ClientID, billing.MonthStart(stmt.StatementMonth), stmt.TotalAmount,
		stmt.DateGenerated, string(stmt.AgingCategory), stmt.UpdatedAt,
	)
	var inserted bool
	saved, err := scanStatementWith(row, &inserted)
	if err != nil {
		return nil, false, err
	}
	if saved == nil {
		return nil, false, fmt.Errorf("statement repo: upsert returned no row for %s", stmt.ClientID)
	}
	return saved, inserted, nil
}

// UpdateTotal overwrites the statement total.
func (r *StatementRepository) UpdateTotal(ctx context.Context, id string, total decimal.Decimal, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("statement repo: nil db")
	}
	return r.execOne(ctx, `
UPDATE statements
SET total_amount = $1, updated_at = $2
WHERE id = $3`, total, updatedAt, id)
}

// UpdateAgingCategory changes the aging classification.
func (r *StatementRepository) UpdateAgingCategory(ctx context.Context, id string, category billing.AgingCategory, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("statement repo: nil db")
	}
	return r.execOne(ctx, `
UPDATE statements
SET aging_category = $1, updated_at = $2
WHERE id = $3`, string(category), updatedAt, id)
}

// GetByID fetches a statement.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*billing.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+statementColumns+`
FROM statements
WHERE id = $1
LIMIT 1`, id)
	return scanStatement(row)
}

// List returns statements matching the filter, newest month first.
func (r *StatementRepository) List(ctx context.Context, filter billing.StatementFilter) ([]billing.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}
	var where []string
	var args []any
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if !filter.Month.IsZero() {
		args = append(args, billing.MonthStart(filter.Month))
		where = append(where, fmt.Sprintf("statement_month = $%d", len(args)))
	}
	query := `
SELECT ` + statementColumns + `
FROM statements`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY statement_month DESC, client_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			result = append(result, *stmt)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *StatementRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrStatementNotFound
	}
	return nil
}

func scanStatement(row rowScanner) (*billing.Statement, error) {
	return scanStatementWith(row)
}

func scanStatementWith(row rowScanner, extra ...any) (*billing.Statement, error) {
	var stmt billing.Statement
	var aging string
	dest := []any{
		&stmt.ID,
		&stmt.ClientID,
		&stmt.StatementMonth,
		&stmt.TotalAmount,
		&stmt.DateGenerated,
		&aging,
		&stmt.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	stmt.AgingCategory = billing.AgingCategory(aging)
	if stmt.AgingCategory == "" {
		stmt.AgingCategory = billing.DefaultAgingCategory
	}
	stmt.StatementMonth = billing.MonthStart(stmt.StatementMonth)
	stmt.DateGenerated = stmt.DateGenerated.UTC()
	stmt.UpdatedAt = stmt.UpdatedAt.UTC()
	return &stmt, nil
}
