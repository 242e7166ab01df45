package memory

import (
	"context"
	"sort"
	"sync"

	templates "gelato-ops/internal/templates/domain"
)

// Repository is an in-memory template store.
type Repository struct {
	mu    sync.RWMutex
	items map[templates.Kind]map[string]templates.Template
}

var _ templates.Repository = (*Repository)(nil)

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{items: make(map[templates.Kind]map[string]templates.Template)}
}

// List returns the templates of a kind ordered by name, then id.
func (r *Repository) List(ctx context.Context, kind templates.Kind) ([]templates.Template, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]templates.Template, 0, len(r.items[kind]))
	for _, tpl := range r.items[kind] {
		result = append(result, clone(tpl))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Get returns a template; nil when absent.
func (r *Repository) Get(ctx context.Context, kind templates.Kind, id string) (*templates.Template, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.items[kind][id]
	if !ok {
		return nil, nil
	}
	out := clone(tpl)
	return &out, nil
}

// Save inserts or replaces a template.
func (r *Repository) Save(ctx context.Context, tpl templates.Template) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[tpl.Kind] == nil {
		r.items[tpl.Kind] = make(map[string]templates.Template)
	}
	r.items[tpl.Kind][tpl.ID] = clone(tpl)
	return nil
}

// Delete removes a template.
func (r *Repository) Delete(ctx context.Context, kind templates.Kind, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[kind][id]; !ok {
		return templates.ErrTemplateNotFound
	}
	delete(r.items[kind], id)
	return nil
}

// ClearDefault unsets the default flag on every template of kind except exceptID.
func (r *Repository) ClearDefault(ctx context.Context, kind templates.Kind, exceptID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, tpl := range r.items[kind] {
		if id != exceptID && tpl.IsDefault {
			tpl.IsDefault = false
			r.items[kind][id] = tpl
		}
	}
	return nil
}

func clone(tpl templates.Template) templates.Template {
	tpl.Lines = append([]string(nil), tpl.Lines...)
	return tpl
}
