package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apihttp "gelato-ops/internal/api/http"
	"gelato-ops/internal/apperr"
	"gelato-ops/internal/audit"
	catalogapp "gelato-ops/internal/catalog/application"
	catalog "gelato-ops/internal/catalog/domain"
)

const (
	prefix = "/api/v1/clients/"

	// MaxUploadBytes bounds a client document upload.
	MaxUploadBytes = 10 << 20
)

// Handler serves client document and custom price endpoints.
type Handler struct {
	service     *catalogapp.ClientService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *catalogapp.ClientService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("client handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

type pricesResponse struct {
	Saved int `json:"saved"`
}

// ServeHTTP routes /api/v1/clients/{id}/{documents|prices}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if !strings.HasPrefix(r.URL.Path, prefix) || len(parts) != 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	clientID := parts[0]
	switch {
	case parts[1] == "documents" && r.Method == http.MethodPost:
		h.handleUpload(w, r, clientID)
	case parts[1] == "prices" && r.Method == http.MethodPut:
		h.handleSetPrices(w, r, clientID)
	case parts[1] == "prices" && r.Method == http.MethodGet:
		h.handleListPrices(w, r, clientID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, clientID string) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		apihttp.WriteError(w, h.logger, apperr.Invalid("file", "multipart form with a file up to 10 MB expected"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apihttp.WriteError(w, h.logger, apperr.Invalid("file", "file is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		apihttp.WriteError(w, h.logger, apperr.Invalid("file", "file could not be read"))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	att, err := h.service.AttachDocument(r.Context(), clientID, header.Filename, content, contentType)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, att)
	audit.LogRequest(h.auditLogger, r, "client.document.upload", "client", clientID, map[string]any{
		"path": att.Path,
		"size": len(content),
	})
}

func (h *Handler) handleSetPrices(w http.ResponseWriter, r *http.Request, clientID string) {
	var edits []catalog.PriceEdit
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		apihttp.WriteError(w, h.logger, apperr.Invalid("body", "expected a list of {product_id, unit_price}"))
		return
	}
	saved, err := h.service.ApplyCustomPrices(r.Context(), clientID, edits)
	if saved > 0 {
		audit.LogRequest(h.auditLogger, r, "client.prices.update", "client", clientID, map[string]any{"saved": saved})
	}
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, pricesResponse{Saved: saved})
}

func (h *Handler) handleListPrices(w http.ResponseWriter, r *http.Request, clientID string) {
	prices, err := h.service.Prices(r.Context(), clientID)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	if prices == nil {
		prices = []catalog.ClientProductPrice{}
	}
	apihttp.WriteJSON(w, http.StatusOK, prices)
}
