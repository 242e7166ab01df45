package application

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gelato-ops/internal/apperr"
	billing "gelato-ops/internal/billing/domain"
	billingmem "gelato-ops/internal/billing/infrastructure/memory"
	catalog "gelato-ops/internal/catalog/domain"
	catalogmem "gelato-ops/internal/catalog/infrastructure/memory"
	documents "gelato-ops/internal/documents/domain"
	exportmem "gelato-ops/internal/documents/infrastructure/memory"
	"gelato-ops/internal/documents/render"
	"gelato-ops/internal/eventing"
	templates "gelato-ops/internal/templates/domain"
)

type stubResolver struct {
	templates map[templates.Kind]*templates.Template
	err       error
	calls     int
}

func (r *stubResolver) Resolve(_ context.Context, kind templates.Kind, id string) (*templates.Template, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	tpl := r.templates[kind]
	if id != "" && (tpl == nil || tpl.ID != id) {
		return nil, templates.ErrTemplateNotFound
	}
	return tpl, nil
}

type memBlobs struct {
	objects map[string][]byte
	err     error
}

func (b *memBlobs) Upload(_ context.Context, objectPath string, content []byte, _ string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if b.objects == nil {
		b.objects = make(map[string][]byte)
	}
	b.objects[objectPath] = content
	return objectPath, nil
}

func (b *memBlobs) Delete(context.Context, []string) error { return nil }

func (b *memBlobs) PublicURL(p string) string { return "/files/" + p }

type fixture struct {
	orders   *billingmem.Store
	clients  *catalogmem.Store
	resolver *stubResolver
	exports  *exportmem.ExportRepository
	blobs    *memBlobs
	svc      *DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:  billingmem.NewStore(),
		clients: catalogmem.NewStore(),
		resolver: &stubResolver{templates: map[templates.Kind]*templates.Template{
			templates.KindHeader: {ID: "h1", Kind: templates.KindHeader, Name: "Letterhead", Lines: []string{"Gelato Wholesale", "Singapore"}},
			templates.KindFooter: {ID: "f1", Kind: templates.KindFooter, Name: "Pay", Lines: []string{"Due in 30 days"}},
		}},
		exports: exportmem.NewExportRepository(),
		blobs:   &memBlobs{},
	}
	f.clients.PutClient(catalog.Client{
		ID:           "c1",
		BusinessName: "Gelato Bar",
		Billing:      catalog.Address{Street: "1 Orchard Rd", PostalCode: "238801", Country: "Singapore"},
	})

	delivery := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	f.orders.PutOrder(billing.Order{
		ID:           "o1",
		ClientID:     "c1",
		DeliveryDate: delivery,
		TotalAmount:  decimal.RequireFromString("27.25"),
		InvoiceID:    "INV-1001",
	},
		billing.LineItem{OrderID: "o1", ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Subtotal: decimal.RequireFromString("20.00"), BillingName: "Pistachio 5L"},
		billing.LineItem{OrderID: "o1", ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00"), Subtotal: decimal.RequireFromString("5.00"), ProductType: "Sorbet"},
	)

	svc, err := NewDocumentService(f.orders.Orders(), f.orders.Statements(), f.clients, f.resolver, nil,
		WithArchive(f.blobs, f.exports),
		WithClock(func() time.Time { return time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) statement(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	stmt, _, err := f.orders.Statements().CreateOrGet(ctx, billing.Statement{
		ID:             "s1",
		ClientID:       "c1",
		StatementMonth: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:    decimal.RequireFromString("27.25"),
		DateGenerated:  time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		AgingCategory:  billing.Aging31To60,
	})
	require.NoError(t, err)
	_, err = f.orders.Orders().AssignStatement(ctx, []string{"o1"}, stmt.ID)
	require.NoError(t, err)
	return stmt.ID
}

func TestInvoiceModel(t *testing.T) {
	f := newFixture(t)
	model, err := f.svc.InvoiceModel(context.Background(), "o1", "", "")
	require.NoError(t, err)

	assert.Equal(t, "INV-1001", model.Meta.Number)
	assert.Equal(t, "Invoice_INV-1001_05-03-2025.pdf", model.Filename)
	require.NotNil(t, model.Header)
	assert.Equal(t, "Gelato Wholesale", model.Header.Lines[0])
	require.NotNil(t, model.Footer)
	assert.Equal(t, "25.00", model.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "27.25", model.Totals.Total.StringFixed(2))
	assert.True(t, model.Reconciled())
	assert.Equal(t, []string{"1 Orchard Rd", "Singapore 238801"}, model.Recipient.AddressLines)
}

func TestInvoiceModelErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.InvoiceModel(ctx, "missing", "", "")
	assert.ErrorIs(t, err, billing.ErrOrderNotFound)

	f.orders.PutOrder(billing.Order{ID: "o2", ClientID: "c1", InvoiceID: "INV-2"})
	_, err = f.svc.InvoiceModel(ctx, "o2", "", "")
	assert.ErrorIs(t, err, documents.ErrEmptyInvoiceSet)
	assert.Equal(t, "no items found", err.Error())

	f.orders.PutOrder(billing.Order{ID: "o3", ClientID: "ghost", InvoiceID: "INV-3"},
		billing.LineItem{OrderID: "o3", ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(1)})
	_, err = f.svc.InvoiceModel(ctx, "o3", "", "")
	assert.ErrorIs(t, err, documents.ErrMissingClient)
}

func TestTemplateFailureOmitsBlocks(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = errors.New("templates offline")

	model, err := f.svc.InvoiceModel(context.Background(), "o1", "h1", "f1")
	require.NoError(t, err)
	assert.Nil(t, model.Header)
	assert.Nil(t, model.Footer)

	f.resolver.err = nil
	model, err = f.svc.InvoiceModel(context.Background(), "o1", "unknown", "")
	require.NoError(t, err)
	assert.Nil(t, model.Header)
	assert.NotNil(t, model.Footer)
}

func TestModelsReflectStoreChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.statement(t)

	model, err := f.svc.StatementModel(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "27.25", model.Totals.Total.StringFixed(2))
	assert.Len(t, model.Lines, 1)

	f.orders.PutOrder(billing.Order{
		ID:           "o9",
		ClientID:     "c1",
		DeliveryDate: time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
		TotalAmount:  decimal.RequireFromString("10.00"),
		InvoiceID:    "INV-1009",
		StatementID:  &id,
	})
	require.NoError(t, f.orders.Statements().UpdateTotal(ctx, id, decimal.RequireFromString("37.25"), time.Now()))

	model, err = f.svc.StatementModel(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "37.25", model.Totals.Total.StringFixed(2))
	assert.Len(t, model.Lines, 2)

	f.clients.PutClient(catalog.Client{ID: "c1", BusinessName: "Gelato Bar Pte"})
	invoice, err := f.svc.InvoiceModel(ctx, "o1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Gelato Bar Pte", invoice.Recipient.Name)
}

func TestOverlongTemplateIsTruncatedWithWarning(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	svc, err := NewDocumentService(f.orders.Orders(), f.orders.Statements(), f.clients, f.resolver, zap.New(core))
	require.NoError(t, err)
	f.resolver.templates[templates.KindFooter] = &templates.Template{
		ID:    "f-old",
		Kind:  templates.KindFooter,
		Lines: []string{"1", "2", "3", "4", "5", "6", "7"},
	}

	model, err := svc.InvoiceModel(context.Background(), "o1", "", "")
	require.NoError(t, err)
	require.NotNil(t, model.Footer)
	assert.Len(t, model.Footer.Lines, templates.MaxFooterLines)

	warned := logs.FilterMessage("template exceeds line limit, extra lines dropped").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "f-old", warned[0].ContextMap()["template_id"])
	assert.Equal(t, int64(7), warned[0].ContextMap()["lines"])
}

func TestSubscribeLogsSupersededStatementExports(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	svc, err := NewDocumentService(f.orders.Orders(), f.orders.Statements(), f.clients, f.resolver, zap.New(core))
	require.NoError(t, err)
	bus := eventing.NewBus()
	svc.Subscribe(bus)

	require.NoError(t, bus.Publish(context.Background(), eventing.StatementsChanged{StatementIDs: []string{"s1"}}))
	assert.Equal(t, 1, logs.FilterMessage("statement exports superseded").Len())
}

func TestStatementModel(t *testing.T) {
	f := newFixture(t)
	id := f.statement(t)

	model, err := f.svc.StatementModel(context.Background(), id, "")
	require.NoError(t, err)
	assert.Equal(t, documents.KindStatement, model.Kind)
	assert.Equal(t, "Statement_s1_March_2025.pdf", model.Filename)
	require.Len(t, model.Lines, 1)
	assert.Equal(t, "INV-1001", model.Lines[0].Reference)
	require.NotNil(t, model.Aging)
	assert.Equal(t, "27.25", model.Aging.D31To60.StringFixed(2))
	assert.Nil(t, model.Footer)

	_, err = f.svc.StatementModel(context.Background(), "nope", "")
	assert.ErrorIs(t, err, billing.ErrStatementNotFound)
}

func TestRenderingArchivesExports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.statement(t)

	pdf, err := f.svc.InvoicePDF(ctx, "o1", "", "", render.ModePrint)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))
	assert.True(t, pdf.Inline)
	assert.Equal(t, "application/pdf", pdf.ContentType)

	sheet, err := f.svc.StatementXLSX(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "Statement_s1_March_2025.xlsx", sheet.Filename)
	assert.False(t, sheet.Inline)

	invoices, err := f.svc.Exports(ctx, documents.KindInvoice, "o1")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, documents.ExportArchived, invoices[0].Status)
	assert.Equal(t, pdf.Body, f.blobs.objects[invoices[0].Path])

	stmts, err := f.svc.Exports(ctx, documents.KindStatement, id)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, FormatXLSX, stmts[0].Format)
}

func TestArchiveFailureDoesNotFailDownload(t *testing.T) {
	f := newFixture(t)
	f.blobs.err = errors.New("bucket unavailable")
	ctx := context.Background()
	id := f.statement(t)

	out, err := f.svc.StatementPDF(ctx, id, "", render.ModeDownload)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Body)
	assert.False(t, out.Inline)

	list, err := f.svc.Exports(ctx, documents.KindStatement, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, documents.ExportFailed, list[0].Status)
	assert.Equal(t, "bucket unavailable", list[0].Error)
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	f := newFixture(t)
	svc, err := NewDocumentService(failingOrders{f.orders.Orders()}, f.orders.Statements(), f.clients, nil, nil)
	require.NoError(t, err)

	_, err = svc.InvoiceModel(context.Background(), "o1", "", "")
	assert.True(t, apperr.IsStore(err))
}

type failingOrders struct {
	billing.OrderRepository
}

func (failingOrders) GetByID(context.Context, string) (*billing.Order, error) {
	return nil, errors.New("connection reset")
}
