package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	billing "gelato-ops/internal/billing/domain"
)

// Store is an in-memory order and statement store. It enforces the
// (client, month) uniqueness of statements like the Postgres schema does.
type Store struct {
	mu         sync.RWMutex
	orders     map[string]billing.Order
	items      map[string][]billing.LineItem
	statements map[string]billing.Statement
	byMonth    map[string]string
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		orders:     make(map[string]billing.Order),
		items:      make(map[string][]billing.LineItem),
		statements: make(map[string]billing.Statement),
		byMonth:    make(map[string]string),
	}
}

func monthKey(clientID string, month time.Time) string {
	return clientID + "|" + billing.MonthStart(month).Format("2006-01")
}

// PutOrder inserts or replaces an order and its line items.
func (s *Store) PutOrder(order billing.Order, items ...billing.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
	if len(items) > 0 {
		s.items[order.ID] = append([]billing.LineItem(nil), items...)
	}
}

// DeleteOrder removes an order and cascades to its line items.
func (s *Store) DeleteOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	delete(s.items, id)
}

// Orders returns the order repository view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{store: s} }

// Statements returns the statement repository view of the store.
func (s *Store) Statements() *StatementRepository { return &StatementRepository{store: s} }

// AllStatements returns every statement, newest month first.
func (s *Store) AllStatements() []billing.Statement {
	list, _ := s.Statements().List(context.Background(), billing.StatementFilter{})
	return list
}

// Order returns a stored order by id.
func (s *Store) Order(id string) (billing.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return cloneOrder(o), ok
}

// OrderRepository implements billing.OrderRepository over a Store.
type OrderRepository struct {
	store *Store
}

// StatementRepository implements billing.StatementRepository over a Store.
type StatementRepository struct {
	store *Store
}

var (
	_ billing.OrderRepository     = (*OrderRepository)(nil)
	_ billing.StatementRepository = (*StatementRepository)(nil)
)

// ListUnassigned implements billing.OrderRepository.
func (r *OrderRepository) ListUnassigned(ctx context.Context) ([]billing.Order, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []billing.Order
	for _, o := range s.orders {
		if !o.Assigned() {
			result = append(result, cloneOrder(o))
		}
	}
	sortOrders(result)
	return result, nil
}

// ListByStatement implements billing.OrderRepository.
func (r *OrderRepository) ListByStatement(ctx context.Context, statementID string) ([]billing.Order, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []billing.Order
	for _, o := range s.orders {
		if o.Assigned() && *o.StatementID == statementID {
			result = append(result, cloneOrder(o))
		}
	}
	sortOrders(result)
	return result, nil
}

// GetByID implements billing.OrderRepository.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*billing.Order, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	out := cloneOrder(o)
	return &out, nil
}

// ListLineItems implements billing.OrderRepository.
func (r *OrderRepository) ListLineItems(ctx context.Context, orderID string) ([]billing.LineItem, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]billing.LineItem(nil), s.items[orderID]...), nil
}

// AssignStatement implements billing.OrderRepository.
func (r *OrderRepository) AssignStatement(ctx context.Context, orderIDs []string, statementID string) (int, error) {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	assigned := 0
	for _, id := range orderIDs {
		o, ok := s.orders[id]
		if !ok || o.Assigned() {
			continue
		}
		ref := statementID
		o.StatementID = &ref
		s.orders[id] = o
		assigned++
	}
	return assigned, nil
}

// FindByClientMonth implements billing.StatementRepository.
func (r *StatementRepository) FindByClientMonth(ctx context.Context, clientID string, month time.Time) (*billing.Statement, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byMonth[monthKey(clientID, month)]
	if !ok {
		return nil, nil
	}
	stmt := s.statements[id]
	return &stmt, nil
}

// CreateOrGet implements billing.StatementRepository.
func (r *StatementRepository) CreateOrGet(ctx context.Context, stmt billing.Statement) (*billing.Statement, bool, error) {
	_ = ctx
	s := r.store
	if stmt.ClientID == "" {
		return nil, false, billing.ErrEmptyClientID
	}
	if stmt.StatementMonth.IsZero() {
		return nil, false, billing.ErrInvalidMonth
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := monthKey(stmt.ClientID, stmt.StatementMonth)
	if id, ok := s.byMonth[key]; ok {
		existing := s.statements[id]
		return &existing, false, nil
	}
	stmt.StatementMonth = billing.MonthStart(stmt.StatementMonth)
	if stmt.AgingCategory == "" {
		stmt.AgingCategory = billing.DefaultAgingCategory
	}
	s.statements[stmt.ID] = stmt
	s.byMonth[key] = stmt.ID
	return &stmt, true, nil
}

// UpdateTotal implements billing.StatementRepository.
func (r *StatementRepository) UpdateTotal(ctx context.Context, id string, total decimal.Decimal, updatedAt time.Time) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stmt, ok := s.statements[id]
	if !ok {
		return billing.ErrStatementNotFound
	}
	stmt.TotalAmount = total
	stmt.UpdatedAt = updatedAt
	s.statements[id] = stmt
	return nil
}

// UpdateAgingCategory implements billing.StatementRepository.
func (r *StatementRepository) UpdateAgingCategory(ctx context.Context, id string, category billing.AgingCategory, updatedAt time.Time) error {
	_ = ctx
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stmt, ok := s.statements[id]
	if !ok {
		return billing.ErrStatementNotFound
	}
	stmt.AgingCategory = category
	stmt.UpdatedAt = updatedAt
	s.statements[id] = stmt
	return nil
}

// GetByID implements billing.StatementRepository.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*billing.Statement, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	stmt, ok := s.statements[id]
	if !ok {
		return nil, nil
	}
	return &stmt, nil
}

// List implements billing.StatementRepository.
func (r *StatementRepository) List(ctx context.Context, filter billing.StatementFilter) ([]billing.Statement, error) {
	_ = ctx
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []billing.Statement
	for _, stmt := range s.statements {
		if filter.ClientID != "" && stmt.ClientID != filter.ClientID {
			continue
		}
		if !filter.Month.IsZero() && !stmt.StatementMonth.Equal(billing.MonthStart(filter.Month)) {
			continue
		}
		result = append(result, stmt)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StatementMonth.Equal(result[j].StatementMonth) {
			return result[i].StatementMonth.After(result[j].StatementMonth)
		}
		return result[i].ClientID < result[j].ClientID
	})
	return result, nil
}

func cloneOrder(o billing.Order) billing.Order {
	if o.StatementID != nil {
		ref := *o.StatementID
		o.StatementID = &ref
	}
	return o
}

func sortOrders(orders []billing.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].DeliveryDate.Equal(orders[j].DeliveryDate) {
			return orders[i].DeliveryDate.Before(orders[j].DeliveryDate)
		}
		return orders[i].ID < orders[j].ID
	})
}
