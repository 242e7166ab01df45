package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihttp "gelato-ops/internal/api/http"
	"gelato-ops/internal/audit"
	"gelato-ops/internal/blobstore"
	catalogapp "gelato-ops/internal/catalog/application"
	catalog "gelato-ops/internal/catalog/domain"
	"gelato-ops/internal/catalog/infrastructure/memory"
)

type flakyPrices struct {
	*memory.Store
	fail string
}

func (f flakyPrices) UpsertPrice(ctx context.Context, price catalog.ClientProductPrice) error {
	if price.ProductID == f.fail {
		return errors.New("connection reset")
	}
	return f.Store.UpsertPrice(ctx, price)
}

func newHandler(t *testing.T, failProduct string) (*Handler, *memory.Store, *audit.MemoryLogger, *blobstore.LocalStore) {
	t.Helper()
	store := memory.NewStore()
	store.PutClient(catalog.Client{ID: "c1", BusinessName: "Gelato Bar"})
	blobs, err := blobstore.NewLocalStore(t.TempDir(), "https://files.test", nil)
	require.NoError(t, err)
	svc, err := catalogapp.NewClientService(store, flakyPrices{Store: store, fail: failProduct}, blobs, nil)
	require.NoError(t, err)
	logger := &audit.MemoryLogger{}
	h, err := NewHandler(svc, logger, nil)
	require.NoError(t, err)
	return h, store, logger, blobs
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	h, store, logger, blobs := newHandler(t, "")
	body, contentType := multipartBody(t, "acra.pdf", []byte("%PDF-1.4 test"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/c1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var att catalogapp.Attachment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &att))
	assert.Equal(t, "c1", att.ClientID)
	assert.True(t, strings.HasPrefix(att.URL, "https://files.test/"))

	stored, err := blobs.Open(att.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(stored))

	client, err := store.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, client.ACRAPath)
	assert.Equal(t, att.Path, *client.ACRAPath)
	require.Len(t, logger.Entries(), 1)
	assert.Equal(t, "client.document.upload", logger.Entries()[0].Action)
}

func TestUploadRejectsMissingFileAndUnknownClient(t *testing.T) {
	h, _, _, _ := newHandler(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/c1/documents", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType := multipartBody(t, "acra.pdf", []byte("data"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/clients/ghost/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetPrices(t *testing.T) {
	h, _, logger, _ := newHandler(t, "")
	payload := `[{"product_id":"p1","unit_price":"4.50"},{"product_id":"p2","unit_price":"6"}]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/clients/c1/prices", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"saved":2}`, rec.Body.String())
	assert.Len(t, logger.Entries(), 1)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients/c1/prices", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var prices []catalog.ClientProductPrice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prices))
	assert.Len(t, prices, 2)
}

func TestSetPricesPartialFailure(t *testing.T) {
	h, _, logger, _ := newHandler(t, "p2")
	payload := `[{"product_id":"p1","unit_price":"4.50"},{"product_id":"p2","unit_price":"5.00"},{"product_id":"p3","unit_price":"1.25"}]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/clients/c1/prices", strings.NewReader(payload)))

	require.Equal(t, http.StatusMultiStatus, rec.Code)
	var body apihttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Saved)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "p2", body.Failed[0].ProductID)
	assert.Len(t, logger.Entries(), 1)
}

func TestSetPricesValidation(t *testing.T) {
	h, _, logger, _ := newHandler(t, "")
	for _, payload := range []string{
		`not json`,
		`[{"product_id":"p1","unit_price":"-1"}]`,
		`[{"product_id":"p1","unit_price":"1.234"}]`,
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/clients/c1/prices", strings.NewReader(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
	assert.Empty(t, logger.Entries())
}

func TestUnknownClientRoute(t *testing.T) {
	h, _, _, _ := newHandler(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients/c1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
