package memory

import (
	"context"
	"sync"

	production "gelato-ops/internal/production/domain"
)

// Source serves delivered items from memory.
type Source struct {
	mu    sync.RWMutex
	items []production.Item
}

var _ production.Source = (*Source)(nil)

// NewSource constructs a source holding items.
func NewSource(items ...production.Item) *Source {
	return &Source{items: append([]production.Item(nil), items...)}
}

// Add appends delivered items.
func (s *Source) Add(items ...production.Item) {
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
}

// DeliveredItems returns the items whose delivery date falls within rng.
func (s *Source) DeliveredItems(ctx context.Context, rng production.Range) ([]production.Item, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []production.Item
	for _, item := range s.items {
		if item.DeliveryDate.Before(rng.From) || item.DeliveryDate.After(rng.To) {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}
