package apihttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gelato-ops/internal/apperr"
	billing "gelato-ops/internal/billing/domain"
	catalog "gelato-ops/internal/catalog/domain"
	documents "gelato-ops/internal/documents/domain"
	prodapp "gelato-ops/internal/production/application"
	production "gelato-ops/internal/production/domain"
	"gelato-ops/internal/production/infrastructure/memory"
	templates "gelato-ops/internal/templates/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Invalid("email", "bad"), http.StatusBadRequest},
		{billing.ErrInvalidAgingCategory, http.StatusBadRequest},
		{fmt.Errorf("lookup: %w", billing.ErrStatementNotFound), http.StatusNotFound},
		{templates.ErrTemplateNotFound, http.StatusNotFound},
		{catalog.ErrClientNotFound, http.StatusNotFound},
		{documents.ErrEmptyInvoiceSet, http.StatusUnprocessableEntity},
		{documents.ErrMissingClient, http.StatusUnprocessableEntity},
		{apperr.Store("get order", errors.New("dial tcp: refused")), http.StatusBadGateway},
		{&catalog.PartialBatchFailure{Failed: []catalog.PriceEditFailure{{ProductID: "p1"}}, Succeeded: 1}, http.StatusMultiStatus},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := Classify(tc.err)
		assert.Equal(t, tc.want, status, tc.err.Error())
	}

	_, body := Classify(apperr.Store("get order", errors.New("dial tcp: refused")))
	assert.Equal(t, StoreUnavailableMessage, body.Error)
	_, body = Classify(documents.ErrEmptyInvoiceSet)
	assert.Equal(t, "no items found", body.Error)
}

func TestWriteDocumentDisposition(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDocument(rec, "Invoice_INV-1_05-03-2025.pdf", "application/pdf", false, []byte("%PDF"))
	assert.Equal(t, `attachment; filename=Invoice_INV-1_05-03-2025.pdf`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))

	rec = httptest.NewRecorder()
	WriteDocument(rec, "a.pdf", "application/pdf", true, nil)
	assert.Equal(t, `inline; filename=a.pdf`, rec.Header().Get("Content-Disposition"))
}

func TestProductionReportHandler(t *testing.T) {
	source := memory.NewSource(production.Item{
		DeliveryDate: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
		CustomerName: "Alpha Co",
		ProductName:  "Vanilla",
		Quantity:     2,
	})
	svc, err := prodapp.NewReportService(source, nil)
	require.NoError(t, err)
	h, err := NewProductionReportHandler(svc, nil, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/production.xlsx?from=2025-03-03&to=2025-03-09", nil)
	h.ServeHTTP(rec, req.WithContext(context.Background()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Production_Analysis_3_Mar.xlsx")
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/production.xlsx?from=2025-03-09&to=2025-03-03", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/production.xlsx?from=03/03/2025&to=2025-03-09", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reports/production.xlsx", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
