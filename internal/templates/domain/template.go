package templates

import (
	"context"
	"errors"
	"strings"
	"time"

	"gelato-ops/internal/apperr"
)

// Kind separates letterhead and footer templates.
type Kind string

const (
	KindHeader Kind = "header"
	KindFooter Kind = "footer"
)

const (
	// MaxHeaderLines bounds a header template.
	MaxHeaderLines = 7
	// MaxFooterLines bounds a footer template.
	MaxFooterLines = 5
)

var (
	// ErrTemplateNotFound is returned when no template has the requested id.
	ErrTemplateNotFound = errors.New("templates: template not found")
	// ErrInvalidKind is returned for a kind other than header or footer.
	ErrInvalidKind = errors.New("templates: invalid kind")
)

// ParseKind validates a kind value.
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindHeader, KindFooter:
		return Kind(value), nil
	default:
		return "", ErrInvalidKind
	}
}

// MaxLines returns the line limit of a kind.
func (k Kind) MaxLines() int {
	if k == KindFooter {
		return MaxFooterLines
	}
	return MaxHeaderLines
}

// Template is a reusable named block of document text.
type Template struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      Kind      `json:"kind" yaml:"kind"`
	Name      string    `json:"name" yaml:"name"`
	Lines     []string  `json:"lines" yaml:"lines"`
	IsDefault bool      `json:"is_default" yaml:"default"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Normalize trims trailing blank lines.
func (t *Template) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	lines := t.Lines
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	t.Lines = lines
}

// Validate checks the kind, the name and the line limit.
func (t Template) Validate() error {
	if _, err := ParseKind(string(t.Kind)); err != nil {
		return apperr.Invalid("kind", "kind must be header or footer, got %q", t.Kind)
	}
	if strings.TrimSpace(t.Name) == "" {
		return apperr.Invalid("name", "template name is required")
	}
	if len(t.Lines) == 0 {
		return apperr.Invalid("lines", "template needs at least one line")
	}
	if limit := t.Kind.MaxLines(); len(t.Lines) > limit {
		return apperr.Invalid("lines", "%s template allows at most %d lines, got %d", t.Kind, limit, len(t.Lines))
	}
	return nil
}

// Repository persists templates.
type Repository interface {
	List(ctx context.Context, kind Kind) ([]Template, error)
	Get(ctx context.Context, kind Kind, id string) (*Template, error)
	Save(ctx context.Context, tpl Template) error
	Delete(ctx context.Context, kind Kind, id string) error
	ClearDefault(ctx context.Context, kind Kind, exceptID string) error
}
