package application

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gelato-ops/internal/apperr"
	billing "gelato-ops/internal/billing/domain"
	"gelato-ops/internal/blobstore"
	catalog "gelato-ops/internal/catalog/domain"
	documents "gelato-ops/internal/documents/domain"
	"gelato-ops/internal/documents/render"
	"gelato-ops/internal/eventing"
	"gelato-ops/internal/observability/metrics"
	templates "gelato-ops/internal/templates/domain"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"

	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// TemplateResolver looks up a template, or the selected one of its kind when id
// is empty.
type TemplateResolver interface {
	Resolve(ctx context.Context, kind templates.Kind, id string) (*templates.Template, error)
}

// Rendered is a finished document ready to be served.
type Rendered struct {
	Filename    string
	ContentType string
	Inline      bool
	Body        []byte
	Model       *documents.Model
}

// DocumentService builds invoice and statement models and renders them.
type DocumentService struct {
	orders     billing.OrderRepository
	statements billing.StatementRepository
	clients    catalog.ClientRepository
	templates  TemplateResolver
	blobs      blobstore.Store
	exports    documents.ExportRepository
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures the service.
type Option func(*DocumentService)

// WithArchive stores every rendered document in blobs and records it in exports.
func WithArchive(blobs blobstore.Store, exports documents.ExportRepository) Option {
	return func(s *DocumentService) {
		s.blobs = blobs
		s.exports = exports
	}
}

// WithClock overrides the time source of export records.
func WithClock(now func() time.Time) Option {
	return func(s *DocumentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDocumentService constructs a service.
func NewDocumentService(orders billing.OrderRepository, statements billing.StatementRepository, clients catalog.ClientRepository, resolver TemplateResolver, logger *zap.Logger, opts ...Option) (*DocumentService, error) {
	if orders == nil {
		return nil, errors.New("document service: nil order repository")
	}
	if statements == nil {
		return nil, errors.New("document service: nil statement repository")
	}
	if clients == nil {
		return nil, errors.New("document service: nil client repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DocumentService{
		orders:     orders,
		statements: statements,
		clients:    clients,
		templates:  resolver,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscribe logs changes that make archived renderings outdated. Models are
// always rebuilt from the record store, so nothing is dropped here.
func (s *DocumentService) Subscribe(bus *eventing.Bus) {
	if bus == nil {
		return
	}
	eventing.On(bus, func(_ context.Context, evt eventing.StatementsChanged) error {
		s.logger.Info("statement exports superseded", zap.Strings("statement_ids", evt.StatementIDs))
		return nil
	})
	eventing.On(bus, func(_ context.Context, evt eventing.TemplatesChanged) error {
		s.logger.Debug("document templates changed",
			zap.String("kind", evt.Kind),
			zap.String("template_id", evt.TemplateID),
			zap.String("action", evt.Action))
		return nil
	})
	eventing.On(bus, func(_ context.Context, evt eventing.ClientsChanged) error {
		s.logger.Debug("document recipient changed", zap.String("client_id", evt.ClientID), zap.String("action", evt.Action))
		return nil
	})
}

// InvoiceModel builds the invoice of an order from the current store contents.
func (s *DocumentService) InvoiceModel(ctx context.Context, orderID, headerID, footerID string) (*documents.Model, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Store("get order", err)
	}
	if order == nil {
		return nil, billing.ErrOrderNotFound
	}
	items, err := s.orders.ListLineItems(ctx, orderID)
	if err != nil {
		return nil, apperr.Store("list line items", err)
	}
	client, err := s.clients.GetByID(ctx, order.ClientID)
	if err != nil {
		return nil, apperr.Store("get client", err)
	}
	header := s.resolve(ctx, templates.KindHeader, headerID)
	footer := s.resolve(ctx, templates.KindFooter, footerID)

	model, err := documents.BuildInvoiceModel(order, client, items, header, footer)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if !item.Consistent() {
			s.logger.Warn("line item subtotal differs from quantity x unit price",
				zap.String("order_id", orderID),
				zap.String("product_id", item.ProductID))
		}
	}
	s.checkDrift(model, orderID)
	return model, nil
}

// StatementModel builds the statement of account with one line per order.
func (s *DocumentService) StatementModel(ctx context.Context, statementID, headerID string) (*documents.Model, error) {
	stmt, err := s.statements.GetByID(ctx, statementID)
	if err != nil {
		return nil, apperr.Store("get statement", err)
	}
	if stmt == nil {
		return nil, billing.ErrStatementNotFound
	}
	orders, err := s.orders.ListByStatement(ctx, statementID)
	if err != nil {
		return nil, apperr.Store("list statement orders", err)
	}
	client, err := s.clients.GetByID(ctx, stmt.ClientID)
	if err != nil {
		return nil, apperr.Store("get client", err)
	}
	header := s.resolve(ctx, templates.KindHeader, headerID)

	model, err := documents.BuildStatementModel(stmt, client, orders, header)
	if err != nil {
		return nil, err
	}
	s.checkDrift(model, statementID)
	return model, nil
}

// InvoicePDF renders the invoice of an order.
func (s *DocumentService) InvoicePDF(ctx context.Context, orderID, headerID, footerID string, mode render.Mode) (*Rendered, error) {
	started := time.Now()
	model, err := s.InvoiceModel(ctx, orderID, headerID, footerID)
	if err != nil {
		metrics.ObserveExport(string(documents.KindInvoice), FormatPDF, metrics.ResultError, time.Since(started))
		return nil, err
	}
	out, err := s.renderPDF(model, mode)
	if err != nil {
		metrics.ObserveExport(string(documents.KindInvoice), FormatPDF, metrics.ResultError, time.Since(started))
		return nil, err
	}
	metrics.ObserveExport(string(documents.KindInvoice), FormatPDF, metrics.ResultSuccess, time.Since(started))
	s.archive(ctx, documents.KindInvoice, orderID, FormatPDF, out)
	return out, nil
}

// StatementPDF renders a statement of account.
func (s *DocumentService) StatementPDF(ctx context.Context, statementID, headerID string, mode render.Mode) (*Rendered, error) {
	started := time.Now()
	model, err := s.StatementModel(ctx, statementID, headerID)
	if err != nil {
		metrics.ObserveExport(string(documents.KindStatement), FormatPDF, metrics.ResultError, time.Since(started))
		return nil, err
	}
	out, err := s.renderPDF(model, mode)
	if err != nil {
		metrics.ObserveExport(string(documents.KindStatement), FormatPDF, metrics.ResultError, time.Since(started))
		return nil, err
	}
	metrics.ObserveExport(string(documents.KindStatement), FormatPDF, metrics.ResultSuccess, time.Since(started))
	s.archive(ctx, documents.KindStatement, statementID, FormatPDF, out)
	return out, nil
}

// StatementXLSX renders a statement of account as a spreadsheet.
func (s *DocumentService) StatementXLSX(ctx context.Context, statementID, headerID string) (*Rendered, error) {
	started := time.Now()
	model, err := s.StatementModel(ctx, statementID, headerID)
	if err != nil {
		metrics.ObserveExport(string(documents.KindStatement), FormatXLSX, metrics.ResultError, time.Since(started))
		return nil, err
	}
	body, err := render.StatementXLSX(model)
	if err != nil {
		metrics.ObserveExport(string(documents.KindStatement), FormatXLSX, metrics.ResultError, time.Since(started))
		return nil, err
	}
	metrics.ObserveExport(string(documents.KindStatement), FormatXLSX, metrics.ResultSuccess, time.Since(started))
	out := &Rendered{
		Filename:    replaceExt(model.Filename, FormatXLSX),
		ContentType: contentTypeXLSX,
		Body:        body,
		Model:       model,
	}
	s.archive(ctx, documents.KindStatement, statementID, FormatXLSX, out)
	return out, nil
}

// Exports lists the archived renderings of a document.
func (s *DocumentService) Exports(ctx context.Context, kind documents.Kind, subjectID string) ([]documents.Export, error) {
	if s.exports == nil {
		return nil, nil
	}
	list, err := s.exports.ListExports(ctx, kind, subjectID)
	if err != nil {
		return nil, apperr.Store("list exports", err)
	}
	return list, nil
}

func (s *DocumentService) renderPDF(model *documents.Model, mode render.Mode) (*Rendered, error) {
	body, err := render.PDF(model, mode)
	if err != nil {
		return nil, err
	}
	return &Rendered{
		Filename:    model.Filename,
		ContentType: contentTypePDF,
		Inline:      mode == render.ModePrint,
		Body:        body,
		Model:       model,
	}, nil
}

// archive keeps a copy of the rendering. Failures are recorded and logged but
// never fail the download.
func (s *DocumentService) archive(ctx context.Context, kind documents.Kind, subjectID, format string, out *Rendered) {
	if s.blobs == nil || s.exports == nil {
		return
	}
	export := documents.Export{
		ID:           s.newID(),
		DocumentKind: kind,
		SubjectID:    subjectID,
		Format:       format,
		Status:       documents.ExportArchived,
		CreatedAt:    s.now(),
	}
	objectPath := path.Join("exports", string(kind), subjectID, export.ID+"-"+out.Filename)
	stored, err := s.blobs.Upload(ctx, objectPath, out.Body, out.ContentType)
	if err != nil {
		export.Status = documents.ExportFailed
		export.Error = err.Error()
		s.logger.Warn("archive document failed",
			zap.String("kind", string(kind)),
			zap.String("subject_id", subjectID),
			zap.Error(err))
	} else {
		export.Path = stored
	}
	if err := s.exports.RecordExport(ctx, export); err != nil {
		s.logger.Warn("record export failed", zap.String("export_id", export.ID), zap.Error(err))
	}
}

func (s *DocumentService) resolve(ctx context.Context, kind templates.Kind, id string) *templates.Template {
	if s.templates == nil {
		return nil
	}
	tpl, err := s.templates.Resolve(ctx, kind, id)
	if err != nil {
		s.logger.Warn("template lookup failed, block omitted",
			zap.String("kind", string(kind)),
			zap.String("template_id", id),
			zap.Error(err))
		return nil
	}
	if tpl != nil {
		if limit := tpl.Kind.MaxLines(); len(tpl.Lines) > limit {
			s.logger.Warn("template exceeds line limit, extra lines dropped",
				zap.String("kind", string(tpl.Kind)),
				zap.String("template_id", tpl.ID),
				zap.Int("lines", len(tpl.Lines)),
				zap.Int("limit", limit))
		}
	}
	return tpl
}

func (s *DocumentService) checkDrift(model *documents.Model, subjectID string) {
	if model.Reconciled() {
		return
	}
	metrics.IncTotalsDrift()
	s.logger.Warn("document totals drift beyond tolerance",
		zap.String("kind", string(model.Kind)),
		zap.String("subject_id", subjectID),
		zap.String("total", model.Totals.Total.StringFixed(2)),
		zap.String("drift", model.Totals.Drift.StringFixed(2)))
}

func replaceExt(filename, ext string) string {
	if e := path.Ext(filename); e != "" {
		filename = filename[:len(filename)-len(e)]
	}
	return filename + "." + ext
}
