package memory

import (
	"context"
	"sort"
	"sync"

	documents "gelato-ops/internal/documents/domain"
)

// ExportRepository keeps export records in memory.
type ExportRepository struct {
	mu      sync.RWMutex
	exports []documents.Export
}

var _ documents.ExportRepository = (*ExportRepository)(nil)

// NewExportRepository constructs an empty repository.
func NewExportRepository() *ExportRepository {
	return &ExportRepository{}
}

// RecordExport appends an export record.
func (r *ExportRepository) RecordExport(ctx context.Context, export documents.Export) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, export)
	return nil
}

// ListExports returns the records of a document, newest first.
func (r *ExportRepository) ListExports(ctx context.Context, kind documents.Kind, subjectID string) ([]documents.Export, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []documents.Export
	for _, e := range r.exports {
		if e.DocumentKind == kind && e.SubjectID == subjectID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}
