package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	catalog "gelato-ops/internal/catalog/domain"
)

// Store is an in-memory client and price store.
type Store struct {
	mu      sync.RWMutex
	clients map[string]catalog.Client
	prices  map[string]map[string]catalog.ClientProductPrice
}

var (
	_ catalog.ClientRepository = (*Store)(nil)
	_ catalog.PriceRepository  = (*Store)(nil)
)

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		clients: make(map[string]catalog.Client),
		prices:  make(map[string]map[string]catalog.ClientProductPrice),
	}
}

// PutClient inserts or replaces a client.
func (s *Store) PutClient(client catalog.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = cloneClient(client)
}

// GetByID implements catalog.ClientRepository.
func (s *Store) GetByID(ctx context.Context, id string) (*catalog.Client, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	out := cloneClient(c)
	return &out, nil
}

// SetDocumentPath implements catalog.ClientRepository.
func (s *Store) SetDocumentPath(ctx context.Context, id, path string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return catalog.ErrClientNotFound
	}
	c.ACRAPath = &path
	c.UpdatedAt = time.Now().UTC()
	s.clients[id] = c
	return nil
}

// UpsertPrice implements catalog.PriceRepository.
func (s *Store) UpsertPrice(ctx context.Context, price catalog.ClientProductPrice) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	byProduct, ok := s.prices[price.ClientID]
	if !ok {
		byProduct = make(map[string]catalog.ClientProductPrice)
		s.prices[price.ClientID] = byProduct
	}
	byProduct[price.ProductID] = price
	return nil
}

// ListPrices implements catalog.PriceRepository.
func (s *Store) ListPrices(ctx context.Context, clientID string) ([]catalog.ClientProductPrice, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []catalog.ClientProductPrice
	for _, p := range s.prices[clientID] {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result, nil
}

func cloneClient(c catalog.Client) catalog.Client {
	if c.ACRAPath != nil {
		p := *c.ACRAPath
		c.ACRAPath = &p
	}
	return c
}
