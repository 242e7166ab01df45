package catalog

import "context"

// ClientRepository reads and updates clients.
type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*Client, error)
	SetDocumentPath(ctx context.Context, id, path string) error
}

// PriceRepository stores client specific prices.
type PriceRepository interface {
	UpsertPrice(ctx context.Context, price ClientProductPrice) error
	ListPrices(ctx context.Context, clientID string) ([]ClientProductPrice, error)
}
