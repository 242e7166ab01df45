package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gelato-ops/internal/apperr"
	"gelato-ops/internal/eventing"
	templates "gelato-ops/internal/templates/domain"
)

// TemplateService manages header and footer templates and the selected
// template per kind.
type TemplateService struct {
	repo      templates.Repository
	publisher eventing.Publisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	mu         sync.Mutex
	selections map[templates.Kind]*templates.Selection
}

// Option configures the service.
type Option func(*TemplateService)

// WithPublisher sets the invalidation publisher.
func WithPublisher(publisher eventing.Publisher) Option {
	return func(s *TemplateService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *TemplateService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides template id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *TemplateService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewTemplateService constructs a service.
func NewTemplateService(repo templates.Repository, logger *zap.Logger, opts ...Option) (*TemplateService, error) {
	if repo == nil {
		return nil, errors.New("template service: nil repo")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TemplateService{
		repo:       repo,
		publisher:  eventing.Nop{},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		selections: make(map[templates.Kind]*templates.Selection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seed stores the seed templates of every kind that has no templates yet.
func (s *TemplateService) Seed(ctx context.Context, seeds []templates.Template) (int, error) {
	empty := make(map[templates.Kind]bool)
	for _, kind := range []templates.Kind{templates.KindHeader, templates.KindFooter} {
		list, err := s.repo.List(ctx, kind)
		if err != nil {
			return 0, apperr.Store("list templates", err)
		}
		empty[kind] = len(list) == 0
	}
	now := s.now()
	seeded := 0
	for _, tpl := range seeds {
		if !empty[tpl.Kind] {
			continue
		}
		tpl.CreatedAt = now
		tpl.UpdatedAt = now
		if err := s.repo.Save(ctx, tpl); err != nil {
			return seeded, apperr.Store("seed template", err)
		}
		seeded++
	}
	if seeded > 0 {
		s.logger.Info("templates seeded", zap.Int("count", seeded))
		s.resetSelections()
	}
	return seeded, nil
}

// List returns the templates of a kind.
func (s *TemplateService) List(ctx context.Context, kind templates.Kind) ([]templates.Template, error) {
	if _, err := templates.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, apperr.Store("list templates", err)
	}
	s.mu.Lock()
	if sel, ok := s.selections[kind]; ok {
		sel.Reconcile(list)
	}
	s.mu.Unlock()
	return list, nil
}

// Get returns one template.
func (s *TemplateService) Get(ctx context.Context, kind templates.Kind, id string) (*templates.Template, error) {
	tpl, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return nil, apperr.Store("get template", err)
	}
	if tpl == nil {
		return nil, templates.ErrTemplateNotFound
	}
	return tpl, nil
}

// Create validates and stores a new template.
func (s *TemplateService) Create(ctx context.Context, tpl templates.Template) (*templates.Template, error) {
	tpl.Normalize()
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	tpl.ID = s.newID()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	if err := s.save(ctx, tpl); err != nil {
		return nil, err
	}
	s.publish(ctx, tpl.Kind, tpl.ID, "created")
	return &tpl, nil
}

// Update replaces the name, lines and default flag of a template.
func (s *TemplateService) Update(ctx context.Context, kind templates.Kind, id string, changes templates.Template) (*templates.Template, error) {
	current, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	updated := *current
	updated.Name = changes.Name
	updated.Lines = changes.Lines
	updated.IsDefault = changes.IsDefault
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()
	if err := s.save(ctx, updated); err != nil {
		return nil, err
	}
	s.publish(ctx, kind, id, "updated")
	return &updated, nil
}

// Delete removes a template. A deleted selection falls back to the default,
// then the first remaining template.
func (s *TemplateService) Delete(ctx context.Context, kind templates.Kind, id string) error {
	if _, err := s.Get(ctx, kind, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return apperr.Store("delete template", err)
	}
	remaining, err := s.repo.List(ctx, kind)
	if err != nil {
		s.logger.Warn("list templates after delete failed", zap.Error(err))
	} else {
		s.mu.Lock()
		if sel, ok := s.selections[kind]; ok {
			sel.Removed(id, remaining)
		}
		s.mu.Unlock()
	}
	s.publish(ctx, kind, id, "deleted")
	return nil
}

// Select makes id the selected template of its kind.
func (s *TemplateService) Select(ctx context.Context, kind templates.Kind, id string) error {
	sel, list, err := s.selection(ctx, kind)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ok := sel.Select(id, list)
	s.mu.Unlock()
	if !ok {
		return templates.ErrTemplateNotFound
	}
	s.publish(ctx, kind, id, "selected")
	return nil
}

// Selected returns the selected template id of a kind, empty when none.
func (s *TemplateService) Selected(ctx context.Context, kind templates.Kind) (string, error) {
	sel, _, err := s.selection(ctx, kind)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sel.Selected(), nil
}

// Resolve returns the template with id, or the selected template of the kind
// when id is empty. It returns nil without error when nothing is selected.
func (s *TemplateService) Resolve(ctx context.Context, kind templates.Kind, id string) (*templates.Template, error) {
	if id == "" {
		selected, err := s.Selected(ctx, kind)
		if err != nil || selected == "" {
			return nil, err
		}
		id = selected
	}
	return s.Get(ctx, kind, id)
}

func (s *TemplateService) save(ctx context.Context, tpl templates.Template) error {
	if tpl.IsDefault {
		if err := s.repo.ClearDefault(ctx, tpl.Kind, tpl.ID); err != nil {
			return apperr.Store("clear default template", err)
		}
	}
	if err := s.repo.Save(ctx, tpl); err != nil {
		return apperr.Store("save template", err)
	}
	return nil
}

func (s *TemplateService) selection(ctx context.Context, kind templates.Kind) (*templates.Selection, []templates.Template, error) {
	list, err := s.List(ctx, kind)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.selections[kind]
	if !ok {
		sel = templates.NewSelection(kind, list)
		s.selections[kind] = sel
	}
	return sel, list, nil
}

func (s *TemplateService) resetSelections() {
	s.mu.Lock()
	s.selections = make(map[templates.Kind]*templates.Selection)
	s.mu.Unlock()
}

func (s *TemplateService) publish(ctx context.Context, kind templates.Kind, id, action string) {
	evt := eventing.TemplatesChanged{Kind: string(kind), TemplateID: id, Action: action, OccurredAt: s.now()}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish templates changed failed", zap.Error(err))
	}
}
