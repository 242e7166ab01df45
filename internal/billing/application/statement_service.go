package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gelato-ops/internal/apperr"
	billing "gelato-ops/internal/billing/domain"
	"gelato-ops/internal/eventing"
)

// StatementService serves statement queries and the aging classification.
type StatementService struct {
	statements billing.StatementRepository
	orders     billing.OrderRepository
	backfill   *BackfillService
	publisher  eventing.Publisher
	clock      Clock
	logger     *zap.Logger
}

// NewStatementService constructs a service. backfill may be nil to skip the
// backfill-before-list step.
func NewStatementService(statements billing.StatementRepository, orders billing.OrderRepository, backfill *BackfillService, publisher eventing.Publisher, logger *zap.Logger) (*StatementService, error) {
	if statements == nil {
		return nil, errors.New("statement service: nil statement repository")
	}
	if orders == nil {
		return nil, errors.New("statement service: nil order repository")
	}
	if publisher == nil {
		publisher = eventing.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{
		statements: statements,
		orders:     orders,
		backfill:   backfill,
		publisher:  publisher,
		clock:      SystemClock{},
		logger:     logger,
	}, nil
}

// List backfills missing statements, then lists them. A failing backfill is
// logged and the stored statements are still returned.
func (s *StatementService) List(ctx context.Context, clientID, month string) ([]billing.Statement, error) {
	filter := billing.StatementFilter{ClientID: clientID}
	if month != "" {
		start, err := ParseMonth(month)
		if err != nil {
			return nil, err
		}
		filter.Month = start
	}
	if s.backfill != nil {
		if _, err := s.backfill.Backfill(ctx); err != nil {
			s.logger.Error("backfill before list failed", zap.Error(err))
		}
	}
	list, err := s.statements.List(ctx, filter)
	if err != nil {
		return nil, apperr.Store("list statements", err)
	}
	return list, nil
}

// Get returns a statement and the orders it groups.
func (s *StatementService) Get(ctx context.Context, id string) (*billing.Statement, []billing.Order, error) {
	stmt, err := s.statements.GetByID(ctx, id)
	if err != nil {
		return nil, nil, apperr.Store("get statement", err)
	}
	if stmt == nil {
		return nil, nil, billing.ErrStatementNotFound
	}
	orders, err := s.orders.ListByStatement(ctx, id)
	if err != nil {
		return nil, nil, apperr.Store("list statement orders", err)
	}
	return stmt, orders, nil
}

// SetAgingCategory reclassifies the statement balance.
func (s *StatementService) SetAgingCategory(ctx context.Context, id, category string) (*billing.Statement, error) {
	parsed, err := billing.ParseAgingCategory(category)
	if err != nil {
		return nil, err
	}
	stmt, err := s.statements.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Store("get statement", err)
	}
	if stmt == nil {
		return nil, billing.ErrStatementNotFound
	}
	if stmt.AgingCategory == parsed {
		return stmt, nil
	}
	now := s.clock.Now()
	if err := s.statements.UpdateAgingCategory(ctx, id, parsed, now); err != nil {
		if errors.Is(err, billing.ErrStatementNotFound) {
			return nil, err
		}
		return nil, apperr.Store("update aging category", err)
	}
	stmt.AgingCategory = parsed
	stmt.UpdatedAt = now
	if err := s.publisher.Publish(ctx, eventing.StatementsChanged{StatementIDs: []string{id}, OccurredAt: now}); err != nil {
		s.logger.Warn("publish statements changed failed", zap.Error(err))
	}
	return stmt, nil
}

// ParseMonth parses YYYY-MM into the first day of that month in UTC.
func ParseMonth(month string) (time.Time, error) {
	if month == "" {
		return time.Time{}, errors.New("statement service: month required")
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, fmt.Errorf("statement service: month must be YYYY-MM: %w", billing.ErrInvalidMonth)
	}
	return billing.MonthStart(t), nil
}
