package apihttp

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gelato-ops/internal/audit"
	prodapp "gelato-ops/internal/production/application"
	production "gelato-ops/internal/production/domain"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProductionReportHandler serves the production analysis spreadsheet.
type ProductionReportHandler struct {
	service     *prodapp.ReportService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewProductionReportHandler constructs a ProductionReportHandler.
func NewProductionReportHandler(service *prodapp.ReportService, auditLogger audit.Logger, logger *zap.Logger) (*ProductionReportHandler, error) {
	if service == nil {
		return nil, errors.New("production handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductionReportHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/reports/production.xlsx.
func (h *ProductionReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from, err := ParseDateQuery(r, "from")
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	to, err := ParseDateQuery(r, "to")
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	report, err := h.service.Generate(r.Context(), production.Range{From: from, To: to})
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteDocument(w, report.Filename, contentTypeXLSX, false, report.Body)
	audit.LogRequest(h.auditLogger, r, "report.production.export", "report", "production", map[string]any{
		"from": from.Format(dateLayout),
		"to":   to.Format(dateLayout),
		"rows": len(report.Rows),
	})
}
