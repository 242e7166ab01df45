package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apihttp "gelato-ops/internal/api/http"
	"gelato-ops/internal/apperr"
	"gelato-ops/internal/audit"
	billingapp "gelato-ops/internal/billing/application"
	billing "gelato-ops/internal/billing/domain"
	docapp "gelato-ops/internal/documents/application"
	documents "gelato-ops/internal/documents/domain"
	"gelato-ops/internal/documents/render"
)

const prefix = "/api/v1/statements"

// StatementHandler serves statement queries, the aging classification and
// statement documents.
type StatementHandler struct {
	statements  *billingapp.StatementService
	backfill    *billingapp.BackfillService
	documents   *docapp.DocumentService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewStatementHandler constructs a handler.
func NewStatementHandler(statements *billingapp.StatementService, backfill *billingapp.BackfillService, docs *docapp.DocumentService, auditLogger audit.Logger, logger *zap.Logger) (*StatementHandler, error) {
	if statements == nil {
		return nil, errors.New("statement handler: nil statement service")
	}
	if backfill == nil {
		return nil, errors.New("statement handler: nil backfill service")
	}
	if docs == nil {
		return nil, errors.New("statement handler: nil document service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementHandler{statements: statements, backfill: backfill, documents: docs, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles statement routes under /api/v1/statements.
func (h *StatementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == prefix+"/backfill" && r.Method == http.MethodPost {
		h.handleBackfill(w, r)
		return
	}
	if path == prefix && r.Method == http.MethodGet {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(path, prefix+"/") {
		h.handleByID(w, r, strings.TrimPrefix(path, prefix+"/"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *StatementHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, id)
		return
	}
	if len(parts) == 2 {
		switch {
		case parts[1] == "aging" && r.Method == http.MethodPost:
			h.handleAging(w, r, id)
			return
		case parts[1] == "preview" && r.Method == http.MethodGet:
			h.handlePreview(w, r, id)
			return
		case parts[1] == "export.pdf" && r.Method == http.MethodGet:
			h.handleExportPDF(w, r, id)
			return
		case parts[1] == "export.xlsx" && r.Method == http.MethodGet:
			h.handleExportXLSX(w, r, id)
			return
		case parts[1] == "exports" && r.Method == http.MethodGet:
			h.handleExports(w, r, id)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *StatementHandler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	result, err := h.backfill.Backfill(r.Context())
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, result)
	audit.LogRequest(h.auditLogger, r, "statement.backfill", "statement", "", map[string]any{
		"created":  result.Created,
		"updated":  result.Updated,
		"assigned": result.Assigned,
		"repaired": result.Repaired,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	})
}

func (h *StatementHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := h.statements.List(r.Context(), query.Get("client_id"), query.Get("month"))
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []billing.Statement{}
	}
	apihttp.WriteJSON(w, http.StatusOK, list)
}

func (h *StatementHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	stmt, orders, err := h.statements.Get(r.Context(), id)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	if orders == nil {
		orders = []billing.Order{}
	}
	resp := struct {
		Statement *billing.Statement   `json:"statement"`
		Orders    []billing.Order      `json:"orders"`
		Aging     billing.AgingBuckets `json:"aging"`
	}{Statement: stmt, Orders: orders, Aging: billing.AgingAmounts(*stmt)}
	apihttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *StatementHandler) handleAging(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		AgingCategory string `json:"aging_category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apihttp.WriteError(w, h.logger, apperr.Invalid("body", "invalid json"))
		return
	}
	stmt, err := h.statements.SetAgingCategory(r.Context(), id, req.AgingCategory)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, stmt)
	audit.LogRequest(h.auditLogger, r, "statement.aging.set", "statement", id, map[string]any{
		"aging_category": req.AgingCategory,
	})
}

func (h *StatementHandler) handlePreview(w http.ResponseWriter, r *http.Request, id string) {
	model, err := h.documents.StatementModel(r.Context(), id, r.URL.Query().Get("header_id"))
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WritePreview(w, model)
}

func (h *StatementHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, id string) {
	mode, err := render.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	out, err := h.documents.StatementPDF(r.Context(), id, r.URL.Query().Get("header_id"), mode)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteDocument(w, out.Filename, out.ContentType, out.Inline, out.Body)
	audit.LogRequest(h.auditLogger, r, "statement.export", "statement", id, map[string]any{"format": docapp.FormatPDF, "mode": string(mode)})
}

func (h *StatementHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request, id string) {
	out, err := h.documents.StatementXLSX(r.Context(), id, r.URL.Query().Get("header_id"))
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteDocument(w, out.Filename, out.ContentType, false, out.Body)
	audit.LogRequest(h.auditLogger, r, "statement.export", "statement", id, map[string]any{"format": docapp.FormatXLSX})
}

func (h *StatementHandler) handleExports(w http.ResponseWriter, r *http.Request, id string) {
	list, err := h.documents.Exports(r.Context(), documents.KindStatement, id)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []documents.Export{}
	}
	apihttp.WriteJSON(w, http.StatusOK, list)
}
