package http

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apihttp "gelato-ops/internal/api/http"
	"gelato-ops/internal/audit"
	docapp "gelato-ops/internal/documents/application"
	documents "gelato-ops/internal/documents/domain"
	"gelato-ops/internal/documents/render"
)

const prefix = "/api/v1/invoices/"

// InvoiceHandler serves invoice previews and PDFs.
type InvoiceHandler struct {
	service     *docapp.DocumentService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewInvoiceHandler constructs a handler.
func NewInvoiceHandler(service *docapp.DocumentService, auditLogger audit.Logger, logger *zap.Logger) (*InvoiceHandler, error) {
	if service == nil {
		return nil, errors.New("invoice handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceHandler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/invoices/{order_id}/{preview|export.pdf|exports}.
func (h *InvoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if !strings.HasPrefix(r.URL.Path, prefix) || len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	orderID := parts[0]
	query := r.URL.Query()
	headerID, footerID := query.Get("header_id"), query.Get("footer_id")

	switch parts[1] {
	case "preview":
		model, err := h.service.InvoiceModel(r.Context(), orderID, headerID, footerID)
		if err != nil {
			apihttp.WriteError(w, h.logger, err)
			return
		}
		apihttp.WritePreview(w, model)
	case "export.pdf":
		mode, err := render.ParseMode(query.Get("mode"))
		if err != nil {
			apihttp.WriteError(w, h.logger, err)
			return
		}
		out, err := h.service.InvoicePDF(r.Context(), orderID, headerID, footerID, mode)
		if err != nil {
			apihttp.WriteError(w, h.logger, err)
			return
		}
		apihttp.WriteDocument(w, out.Filename, out.ContentType, out.Inline, out.Body)
		audit.LogRequest(h.auditLogger, r, "invoice.export", "order", orderID, map[string]any{"format": docapp.FormatPDF, "mode": string(mode)})
	case "exports":
		list, err := h.service.Exports(r.Context(), documents.KindInvoice, orderID)
		if err != nil {
			apihttp.WriteError(w, h.logger, err)
			return
		}
		if list == nil {
			list = []documents.Export{}
		}
		apihttp.WriteJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
