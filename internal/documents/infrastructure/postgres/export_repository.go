package postgres

import (
	"context"
	"database/sql"
	"errors"

	documents "gelato-ops/internal/documents/domain"
)

// ExportRepository stores export records in document_exports.
type ExportRepository struct {
	db *sql.DB
}

// NewExportRepository constructs a repository.
func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

var _ documents.ExportRepository = (*ExportRepository)(nil)

// RecordExport stores an export record.
func (r *ExportRepository) RecordExport(ctx context.Context, export documents.Export) error {
	if r == nil || r.db == nil {
		return errors.New("export repo: nil db")
	}
	var errMsg sql.NullString
	if export.Error != "" {
		errMsg = sql.NullString{String: export.Error, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_exports (id, document_kind, subject_id, format, status, path, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
		export.ID,
		string(export.DocumentKind),
		export.SubjectID,
		export.Format,
		string(export.Status),
		export.Path,
		errMsg,
		export.CreatedAt.UTC(),
	)
	return err
}

// ListExports returns the records of a document, newest first.
func (r *ExportRepository) ListExports(ctx context.Context, kind documents.Kind, subjectID string) ([]documents.Export, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("export repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_kind, subject_id, format, status, path, error_message, created_at
FROM document_exports
WHERE document_kind = $1 AND subject_id = $2
ORDER BY created_at DESC, id`, string(kind), subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []documents.Export
	for rows.Next() {
		var (
			e       documents.Export
			docKind string
			status  string
			errMsg  sql.NullString
		)
		if err := rows.Scan(&e.ID, &docKind, &e.SubjectID, &e.Format, &status, &e.Path, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DocumentKind = documents.Kind(docKind)
		e.Status = documents.ExportStatus(status)
		e.Error = errMsg.String
		e.CreatedAt = e.CreatedAt.UTC()
		result = append(result, e)
	}
	return result, rows.Err()
}
