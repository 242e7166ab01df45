package documents

import (
	"context"
	"time"
)

// ExportStatus is the outcome of archiving a rendered document.
type ExportStatus string

const (
	ExportArchived ExportStatus = "archived"
	ExportFailed   ExportStatus = "failed"
)

// Export records one archived rendering.
type Export struct {
	ID           string       `json:"id"`
	DocumentKind Kind         `json:"document_kind"`
	SubjectID    string       `json:"subject_id"`
	Format       string       `json:"format"`
	Status       ExportStatus `json:"status"`
	Path         string       `json:"path"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ExportRepository stores export records.
type ExportRepository interface {
	RecordExport(ctx context.Context, export Export) error
	ListExports(ctx context.Context, kind Kind, subjectID string) ([]Export, error)
}
