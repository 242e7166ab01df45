package application

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gelato-ops/internal/apperr"
	"gelato-ops/internal/blobstore"
	catalog "gelato-ops/internal/catalog/domain"
	"gelato-ops/internal/eventing"
	"gelato-ops/internal/observability/metrics"
)

const defaultBatchLimit = 8

// ClientService attaches documents to clients and applies client prices.
type ClientService struct {
	clients    catalog.ClientRepository
	prices     catalog.PriceRepository
	blobs      blobstore.Store
	publisher  eventing.Publisher
	logger     *zap.Logger
	batchLimit int
	now        func() time.Time
}

// Option configures the service.
type Option func(*ClientService)

// WithBatchLimit bounds concurrent price upserts.
func WithBatchLimit(limit int) Option {
	return func(s *ClientService) {
		if limit > 0 {
			s.batchLimit = limit
		}
	}
}

// WithPublisher sets the invalidation publisher.
func WithPublisher(publisher eventing.Publisher) Option {
	return func(s *ClientService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// NewClientService constructs a service.
func NewClientService(clients catalog.ClientRepository, prices catalog.PriceRepository, blobs blobstore.Store, logger *zap.Logger, opts ...Option) (*ClientService, error) {
	if clients == nil {
		return nil, errors.New("client service: nil client repository")
	}
	if prices == nil {
		return nil, errors.New("client service: nil price repository")
	}
	if blobs == nil {
		return nil, errors.New("client service: nil blob store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ClientService{
		clients:    clients,
		prices:     prices,
		blobs:      blobs,
		publisher:  eventing.Nop{},
		logger:     logger,
		batchLimit: defaultBatchLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Attachment is an uploaded client document.
type Attachment struct {
	ClientID string `json:"client_id"`
	Path     string `json:"path"`
	URL      string `json:"url"`
}

// AttachDocument uploads the blob first and then links it to the client. When
// linking fails the uploaded blob is removed again.
func (s *ClientService) AttachDocument(ctx context.Context, clientID, filename string, content []byte, contentType string) (*Attachment, error) {
	result := metrics.ResultError
	defer func() { metrics.IncUpload(result) }()

	if len(content) == 0 {
		return nil, &apperr.ValidationError{Err: catalog.ErrEmptyDocument, Field: "file"}
	}
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, apperr.Store("get client", err)
	}
	if client == nil {
		return nil, catalog.ErrClientNotFound
	}

	objectPath := path.Join("clients", clientID, "documents", uuid.NewString()+"-"+documentName(filename))
	stored, err := s.blobs.Upload(ctx, objectPath, content, contentType)
	if err != nil {
		return nil, apperr.Store("upload document", err)
	}

	if err := s.clients.SetDocumentPath(ctx, clientID, stored); err != nil {
		if cleanupErr := s.blobs.Delete(ctx, []string{stored}); cleanupErr != nil {
			s.logger.Error("remove orphaned upload failed",
				zap.String("client_id", clientID),
				zap.String("path", stored),
				zap.Error(cleanupErr))
		}
		return nil, apperr.Store("link document", err)
	}

	if client.ACRAPath != nil && *client.ACRAPath != "" && *client.ACRAPath != stored {
		if err := s.blobs.Delete(ctx, []string{*client.ACRAPath}); err != nil {
			s.logger.Warn("remove replaced document failed", zap.String("path", *client.ACRAPath), zap.Error(err))
		}
	}

	result = metrics.ResultSuccess
	s.publish(ctx, clientID, "document_attached")
	return &Attachment{ClientID: clientID, Path: stored, URL: s.blobs.PublicURL(stored)}, nil
}

// ApplyCustomPrices validates every edit, then upserts them concurrently.
// Successful upserts are kept when others fail; the failures come back as a
// *catalog.PartialBatchFailure.
func (s *ClientService) ApplyCustomPrices(ctx context.Context, clientID string, edits []catalog.PriceEdit) (int, error) {
	if len(edits) == 0 {
		return 0, &apperr.ValidationError{Err: catalog.ErrNoPriceEdits, Field: "edits"}
	}
	seen := make(map[string]struct{}, len(edits))
	for _, edit := range edits {
		if err := edit.Validate(); err != nil {
			return 0, err
		}
		if _, dup := seen[edit.ProductID]; dup {
			return 0, apperr.Invalid("product_id", "product %s appears more than once", edit.ProductID)
		}
		seen[edit.ProductID] = struct{}{}
	}
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return 0, apperr.Store("get client", err)
	}
	if client == nil {
		return 0, catalog.ErrClientNotFound
	}

	now := s.now()
	errs := make([]error, len(edits))
	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, edit := range edits {
		g.Go(func() error {
			errs[i] = s.prices.UpsertPrice(ctx, catalog.ClientProductPrice{
				ClientID:  clientID,
				ProductID: edit.ProductID,
				UnitPrice: edit.UnitPrice,
				UpdatedAt: now,
			})
			return nil
		})
	}
	_ = g.Wait()

	var failure catalog.PartialBatchFailure
	for i, err := range errs {
		if err != nil {
			failure.Failed = append(failure.Failed, catalog.PriceEditFailure{ProductID: edits[i].ProductID, Err: err})
			s.logger.Warn("custom price upsert failed",
				zap.String("client_id", clientID),
				zap.String("product_id", edits[i].ProductID),
				zap.Error(err))
			continue
		}
		failure.Succeeded++
	}

	if failure.Succeeded > 0 {
		s.publish(ctx, clientID, "prices_updated")
	}
	if len(failure.Failed) > 0 {
		if failure.Succeeded == 0 {
			metrics.IncPriceBatch(metrics.ResultError)
		} else {
			metrics.IncPriceBatch(metrics.ResultPartial)
		}
		return failure.Succeeded, &failure
	}
	metrics.IncPriceBatch(metrics.ResultSuccess)
	return failure.Succeeded, nil
}

// Prices lists the custom prices of a client.
func (s *ClientService) Prices(ctx context.Context, clientID string) ([]catalog.ClientProductPrice, error) {
	prices, err := s.prices.ListPrices(ctx, clientID)
	if err != nil {
		return nil, apperr.Store("list prices", err)
	}
	return prices, nil
}

func (s *ClientService) publish(ctx context.Context, clientID, action string) {
	evt := eventing.ClientsChanged{ClientID: clientID, Action: action, OccurredAt: s.now()}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish clients changed failed", zap.Error(err))
	}
}

func documentName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' {
			return '_'
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, base)
}
