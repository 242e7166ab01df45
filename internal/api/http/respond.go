package apihttp

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gelato-ops/internal/apperr"
	billing "gelato-ops/internal/billing/domain"
	catalog "gelato-ops/internal/catalog/domain"
	documents "gelato-ops/internal/documents/domain"
	"gelato-ops/internal/documents/render"
	production "gelato-ops/internal/production/domain"
	templates "gelato-ops/internal/templates/domain"
)

const dateLayout = "2006-01-02"

// StoreUnavailableMessage is shown when the record or blob store fails.
const StoreUnavailableMessage = "The record store is unavailable. Please try again."

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error  string                     `json:"error"`
	Field  string                     `json:"field,omitempty"`
	Failed []catalog.PriceEditFailure `json:"failed,omitempty"`
	Saved  int                        `json:"saved,omitempty"`
}

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a service error to a status code and JSON body.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if err == nil {
		return
	}
	status, body := Classify(err)
	if logger != nil && status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	WriteJSON(w, status, body)
}

// Classify returns the status code and body for err.
func Classify(err error) (int, ErrorBody) {
	var (
		validation *apperr.ValidationError
		partial    *catalog.PartialBatchFailure
	)
	switch {
	case errors.As(err, &partial):
		return http.StatusMultiStatus, ErrorBody{Error: partial.Error(), Failed: partial.Failed, Saved: partial.Succeeded}
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorBody{Error: validation.Error(), Field: validation.Field}
	case errors.Is(err, billing.ErrInvalidAgingCategory),
		errors.Is(err, billing.ErrInvalidMonth),
		errors.Is(err, templates.ErrInvalidKind),
		errors.Is(err, render.ErrInvalidMode),
		errors.Is(err, production.ErrInvalidRange):
		return http.StatusBadRequest, ErrorBody{Error: err.Error()}
	case errors.Is(err, billing.ErrStatementNotFound),
		errors.Is(err, billing.ErrOrderNotFound),
		errors.Is(err, catalog.ErrClientNotFound),
		errors.Is(err, templates.ErrTemplateNotFound):
		return http.StatusNotFound, ErrorBody{Error: err.Error()}
	case errors.Is(err, documents.ErrEmptyInvoiceSet),
		errors.Is(err, documents.ErrMissingClient):
		return http.StatusUnprocessableEntity, ErrorBody{Error: err.Error()}
	case apperr.IsStore(err):
		return http.StatusBadGateway, ErrorBody{Error: StoreUnavailableMessage}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal error"}
	}
}

// Preview is the JSON preview of a document model.
type Preview struct {
	Model      *documents.Model `json:"model"`
	Reconciled bool             `json:"reconciled"`
}

// WritePreview serves a document model as JSON.
func WritePreview(w http.ResponseWriter, model *documents.Model) {
	WriteJSON(w, http.StatusOK, Preview{Model: model, Reconciled: model.Reconciled()})
}

// WriteDocument serves a rendered file, inline or as a named attachment.
func WriteDocument(w http.ResponseWriter, filename, contentType string, inline bool, body []byte) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ParseDateQuery reads a required YYYY-MM-DD query parameter.
func ParseDateQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, apperr.Invalid(key, "%s is required", key)
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperr.Invalid(key, "%s must be YYYY-MM-DD", key)
	}
	return parsed.UTC(), nil
}
