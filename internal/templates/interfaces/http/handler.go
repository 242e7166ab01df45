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
	tplapp "gelato-ops/internal/templates/application"
	templates "gelato-ops/internal/templates/domain"
)

const prefix = "/api/v1/templates/"

// Handler serves header and footer template endpoints.
type Handler struct {
	service     *tplapp.TemplateService
	auditLogger audit.Logger
	logger      *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *tplapp.TemplateService, auditLogger audit.Logger, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("templates handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

type templateRequest struct {
	Name      string   `json:"name"`
	Lines     []string `json:"lines"`
	IsDefault bool     `json:"is_default"`
}

type listResponse struct {
	Templates []templates.Template `json:"templates"`
	Selected  string               `json:"selected"`
}

// ServeHTTP routes template requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
	kind, err := templates.ParseKind(parts[0])
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleList(w, r, kind)
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.handleCreate(w, r, kind)
	case len(parts) == 2 && parts[1] != "" && r.Method == http.MethodGet:
		h.handleGet(w, r, kind, parts[1])
	case len(parts) == 2 && parts[1] != "" && r.Method == http.MethodPut:
		h.handleUpdate(w, r, kind, parts[1])
	case len(parts) == 2 && parts[1] != "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, kind, parts[1])
	case len(parts) == 3 && parts[2] == "select" && r.Method == http.MethodPost:
		h.handleSelect(w, r, kind, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, kind templates.Kind) {
	list, err := h.service.List(r.Context(), kind)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	selected, err := h.service.Selected(r.Context(), kind)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []templates.Template{}
	}
	apihttp.WriteJSON(w, http.StatusOK, listResponse{Templates: list, Selected: selected})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, kind templates.Kind, id string) {
	tpl, err := h.service.Get(r.Context(), kind, id)
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, tpl)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, kind templates.Kind) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	tpl, err := h.service.Create(r.Context(), templates.Template{Kind: kind, Name: req.Name, Lines: req.Lines, IsDefault: req.IsDefault})
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusCreated, tpl)
	audit.LogRequest(h.auditLogger, r, "template.create", "template", tpl.ID, map[string]any{"kind": string(kind), "default": tpl.IsDefault})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, kind templates.Kind, id string) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	tpl, err := h.service.Update(r.Context(), kind, id, templates.Template{Name: req.Name, Lines: req.Lines, IsDefault: req.IsDefault})
	if err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, tpl)
	audit.LogRequest(h.auditLogger, r, "template.update", "template", id, map[string]any{"kind": string(kind), "default": tpl.IsDefault})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, kind templates.Kind, id string) {
	if err := h.service.Delete(r.Context(), kind, id); err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	audit.LogRequest(h.auditLogger, r, "template.delete", "template", id, map[string]any{"kind": string(kind)})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request, kind templates.Kind, id string) {
	if err := h.service.Select(r.Context(), kind, id); err != nil {
		apihttp.WriteError(w, h.logger, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, map[string]string{"selected": id})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (templateRequest, bool) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apihttp.WriteError(w, h.logger, apperr.Invalid("body", "invalid json"))
		return req, false
	}
	return req, true
}
