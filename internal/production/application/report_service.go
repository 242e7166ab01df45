package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gelato-ops/internal/apperr"
	documents "gelato-ops/internal/documents/domain"
	"gelato-ops/internal/documents/render"
	"gelato-ops/internal/observability/metrics"
	production "gelato-ops/internal/production/domain"
)

// Report is a rendered production analysis.
type Report struct {
	Filename string
	Body     []byte
	Rows     []production.Row
}

// ReportService builds the production analysis spreadsheet.
type ReportService struct {
	source production.Source
	logger *zap.Logger
}

// NewReportService constructs a service.
func NewReportService(source production.Source, logger *zap.Logger) (*ReportService, error) {
	if source == nil {
		return nil, errors.New("report service: nil source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{source: source, logger: logger}, nil
}

// Rows returns the sorted report rows of a delivery-date range.
func (s *ReportService) Rows(ctx context.Context, rng production.Range) ([]production.Row, error) {
	if err := rng.Validate(); err != nil {
		return nil, &apperr.ValidationError{Err: err, Field: "from"}
	}
	items, err := s.source.DeliveredItems(ctx, rng)
	if err != nil {
		return nil, apperr.Store("load delivered items", err)
	}
	return production.BuildRows(items), nil
}

// Generate renders the report of a range. The filename carries the start date.
func (s *ReportService) Generate(ctx context.Context, rng production.Range) (*Report, error) {
	rows, err := s.Rows(ctx, rng)
	if err != nil {
		metrics.ObserveReport(metrics.ResultError, 0)
		return nil, err
	}
	body, err := render.ProductionXLSX(rows)
	if err != nil {
		metrics.ObserveReport(metrics.ResultError, 0)
		return nil, err
	}
	metrics.ObserveReport(metrics.ResultSuccess, len(rows))
	s.logger.Info("production report generated",
		zap.Time("from", rng.From),
		zap.Time("to", rng.To),
		zap.Int("rows", len(rows)))
	return &Report{
		Filename: documents.ProductionReportFilename(rng.From),
		Body:     body,
		Rows:     rows,
	}, nil
}
