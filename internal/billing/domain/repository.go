package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRepository reads orders and assigns them to statements.
type OrderRepository interface {
	ListUnassigned(ctx context.Context) ([]Order, error)
	ListByStatement(ctx context.Context, statementID string) ([]Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	ListLineItems(ctx context.Context, orderID string) ([]LineItem, error)
	// AssignStatement sets the statement reference on orders that have none.
	AssignStatement(ctx context.Context, orderIDs []string, statementID string) (int, error)
}

// StatementFilter narrows statement listings.
type StatementFilter struct {
	ClientID string
	Month    time.Time
}

// StatementRepository persists statements.
type StatementRepository interface {
	FindByClientMonth(ctx context.Context, clientID string, month time.Time) (*Statement, error)
	// CreateOrGet inserts the statement or returns the one already stored for its
	// (client, month). The boolean reports whether a row was inserted.
	CreateOrGet(ctx context.Context, stmt Statement) (*Statement, bool, error)
	UpdateTotal(ctx context.Context, id string, total decimal.Decimal, updatedAt time.Time) error
	UpdateAgingCategory(ctx context.Context, id string, category AgingCategory, updatedAt time.Time) error
	GetByID(ctx context.Context, id string) (*Statement, error)
	List(ctx context.Context, filter StatementFilter) ([]Statement, error)
}
