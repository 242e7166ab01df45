package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihttp "gelato-ops/internal/api/http"
	"gelato-ops/internal/audit"
	billingapp "gelato-ops/internal/billing/application"
	billing "gelato-ops/internal/billing/domain"
	billingmem "gelato-ops/internal/billing/infrastructure/memory"
	catalog "gelato-ops/internal/catalog/domain"
	catalogmem "gelato-ops/internal/catalog/infrastructure/memory"
	docapp "gelato-ops/internal/documents/application"
	"gelato-ops/internal/eventing"
)

type env struct {
	handler *StatementHandler
	store   *billingmem.Store
	audit   *audit.MemoryLogger
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := billingmem.NewStore()
	clients := catalogmem.NewStore()
	clients.PutClient(catalog.Client{ID: "c1", BusinessName: "Gelato Bar", Address: "1 Orchard Rd"})
	store.PutOrder(billing.Order{
		ID:           "o1",
		ClientID:     "c1",
		DeliveryDate: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		TotalAmount:  decimal.RequireFromString("100.00"),
		InvoiceID:    "INV-1",
	})
	store.PutOrder(billing.Order{
		ID:           "o2",
		ClientID:     "c1",
		DeliveryDate: time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC),
		TotalAmount:  decimal.RequireFromString("50.00"),
		InvoiceID:    "INV-2",
	})

	bus := eventing.NewBus()
	backfill, err := billingapp.NewBackfillService(store.Orders(), store.Statements(), nil, billingapp.WithPublisher(bus))
	require.NoError(t, err)
	statements, err := billingapp.NewStatementService(store.Statements(), store.Orders(), backfill, bus, nil)
	require.NoError(t, err)
	docs, err := docapp.NewDocumentService(store.Orders(), store.Statements(), clients, nil, nil)
	require.NoError(t, err)
	docs.Subscribe(bus)

	logger := &audit.MemoryLogger{}
	h, err := NewStatementHandler(statements, backfill, docs, logger, nil)
	require.NoError(t, err)
	return env{handler: h, store: store, audit: logger}
}

func (e env) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewReader(body)))
	return rec
}

func (e env) statementID(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/v1/statements?client_id=c1&month=2025-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []billing.Statement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	return list[0].ID
}

func TestBackfillEndpoint(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/statements/backfill", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result billingapp.BackfillResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Assigned)
	require.Len(t, e.audit.Entries(), 1)
	assert.Equal(t, "statement.backfill", e.audit.Entries()[0].Action)
}

func TestListBackfillsAndGetReturnsMembers(t *testing.T) {
	e := newEnv(t)
	id := e.statementID(t)

	rec := e.do(t, http.MethodGet, "/api/v1/statements/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Statement billing.Statement `json:"statement"`
		Orders    []billing.Order   `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "150.00", resp.Statement.TotalAmount.StringFixed(2))
	assert.Len(t, resp.Orders, 2)

	rec = e.do(t, http.MethodGet, "/api/v1/statements?month=March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/statements/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgingEndpoint(t *testing.T) {
	e := newEnv(t)
	id := e.statementID(t)

	rec := e.do(t, http.MethodPost, "/api/v1/statements/"+id+"/aging", []byte(`{"aging_category":"61-90"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var stmt billing.Statement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stmt))
	assert.Equal(t, billing.Aging61To90, stmt.AgingCategory)

	rec = e.do(t, http.MethodPost, "/api/v1/statements/"+id+"/aging", []byte(`{"aging_category":"120+"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/statements/"+id+"/aging", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewAndExports(t *testing.T) {
	e := newEnv(t)
	id := e.statementID(t)

	rec := e.do(t, http.MethodGet, "/api/v1/statements/"+id+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var preview apihttp.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.True(t, preview.Reconciled)
	assert.Len(t, preview.Model.Lines, 2)
	assert.Equal(t, "March 2025", preview.Model.Meta.Period)

	rec = e.do(t, http.MethodGet, "/api/v1/statements/"+id+"/export.pdf?mode=print", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = e.do(t, http.MethodGet, "/api/v1/statements/"+id+"/export.pdf?mode=fax", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/statements/"+id+"/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "_March_2025.xlsx")

	rec = e.do(t, http.MethodGet, "/api/v1/statements/"+id+"/exports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/v1/statements/x", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/v1/statements/x/freeze", nil).Code)
}

func TestPreviewWithoutClientIsUnprocessable(t *testing.T) {
	e := newEnv(t)
	e.store.PutOrder(billing.Order{
		ID:           "o3",
		ClientID:     "ghost",
		DeliveryDate: time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC),
		TotalAmount:  decimal.RequireFromString("10.00"),
		InvoiceID:    "INV-3",
	})
	rec := e.do(t, http.MethodGet, "/api/v1/statements?client_id=ghost", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []billing.Statement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = e.do(t, http.MethodGet, "/api/v1/statements/"+list[0].ID+"/preview", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body apihttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
}

type unreachableStatements struct {
	billing.StatementRepository
}

func (unreachableStatements) GetByID(context.Context, string) (*billing.Statement, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func (unreachableStatements) List(context.Context, billing.StatementFilter) ([]billing.Statement, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestStoreFailuresAreBadGateway(t *testing.T) {
	store := billingmem.NewStore()
	repo := unreachableStatements{StatementRepository: store.Statements()}
	backfill, err := billingapp.NewBackfillService(store.Orders(), repo, nil)
	require.NoError(t, err)
	statements, err := billingapp.NewStatementService(repo, store.Orders(), backfill, nil, nil)
	require.NoError(t, err)
	docs, err := docapp.NewDocumentService(store.Orders(), repo, catalogmem.NewStore(), nil, nil)
	require.NoError(t, err)
	h, err := NewStatementHandler(statements, backfill, docs, &audit.MemoryLogger{}, nil)
	require.NoError(t, err)
	e := env{handler: h, store: store}

	for _, tc := range []struct {
		method, target string
		body           []byte
	}{
		{http.MethodGet, "/api/v1/statements", nil},
		{http.MethodGet, "/api/v1/statements/stmt-1", nil},
		{http.MethodPost, "/api/v1/statements/stmt-1/aging", []byte(`{"aging_category":"31-60"}`)},
		{http.MethodPost, "/api/v1/statements/backfill", nil},
	} {
		rec := e.do(t, tc.method, tc.target, tc.body)
		require.Equal(t, http.StatusBadGateway, rec.Code, tc.target)
		var body apihttp.ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, apihttp.StoreUnavailableMessage, body.Error, tc.target)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5", tc.target)
	}
}
