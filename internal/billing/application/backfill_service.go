package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gelato-ops/internal/apperr"
	billing "gelato-ops/internal/billing/domain"
	"gelato-ops/internal/eventing"
	"gelato-ops/internal/observability/metrics"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator creates statement ids.
type IDGenerator func() string

// NewStatementID returns a random statement id.
func NewStatementID() string { return uuid.NewString() }

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Orders   int `json:"orders"`
	Groups   int `json:"groups"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Assigned int `json:"assigned"`
	Repaired int `json:"repaired"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Changed reports whether the run wrote anything.
func (r BackfillResult) Changed() bool {
	return r.Created > 0 || r.Updated > 0 || r.Assigned > 0 || r.Repaired > 0
}

// BackfillService groups unassigned orders into monthly client statements.
type BackfillService struct {
	orders     billing.OrderRepository
	statements billing.StatementRepository
	publisher  eventing.Publisher
	clock      Clock
	newID      IDGenerator
	logger     *zap.Logger

	mu sync.Mutex
}

// BackfillOption configures the service.
type BackfillOption func(*BackfillService)

// WithClock overrides the clock.
func WithClock(clock Clock) BackfillOption {
	return func(s *BackfillService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides statement id generation.
func WithIDGenerator(gen IDGenerator) BackfillOption {
	return func(s *BackfillService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithPublisher sets the invalidation publisher.
func WithPublisher(publisher eventing.Publisher) BackfillOption {
	return func(s *BackfillService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// NewBackfillService constructs the service.
func NewBackfillService(orders billing.OrderRepository, statements billing.StatementRepository, logger *zap.Logger, opts ...BackfillOption) (*BackfillService, error) {
	if orders == nil {
		return nil, errors.New("backfill service: nil order repository")
	}
	if statements == nil {
		return nil, errors.New("backfill service: nil statement repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BackfillService{
		orders:     orders,
		statements: statements,
		publisher:  eventing.Nop{},
		clock:      SystemClock{},
		newID:      NewStatementID,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type orderGroup struct {
	key    billing.MonthKey
	orders []billing.Order
}

// Backfill first recomputes stored statement totals that no longer match their
// member orders, then assigns every unassigned order to the statement of its
// client and delivery month, creating statements as needed. Group failures are
// logged and skipped. Only the store listings can fail the run.
func (s *BackfillService) Backfill(ctx context.Context) (BackfillResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := metrics.ResultSuccess
	var summary BackfillResult
	defer func() {
		metrics.ObserveBackfill(result, time.Since(start))
		metrics.AddBackfillGroups("created", summary.Created)
		metrics.AddBackfillGroups("updated", summary.Updated)
		metrics.AddBackfillGroups("failed", summary.Failed)
	}()

	var changed []string
	repaired, err := s.repairTotals(ctx, &summary)
	if err != nil {
		result = metrics.ResultError
		return summary, err
	}
	changed = append(changed, repaired...)

	unassigned, err := s.orders.ListUnassigned(ctx)
	if err != nil {
		result = metrics.ResultError
		return summary, apperr.Store("list unassigned orders", err)
	}
	summary.Orders = len(unassigned)

	groups, skipped := groupOrders(unassigned)
	summary.Groups = len(groups)
	summary.Skipped = len(skipped)
	for _, o := range skipped {
		s.logger.Warn("order skipped by backfill, client or delivery date missing",
			zap.String("order_id", o.ID),
			zap.String("client_id", o.ClientID))
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			result = metrics.ResultError
			return summary, err
		}
		stmtID, created, assigned, err := s.processGroup(ctx, group)
		if err != nil {
			summary.Failed++
			s.logger.Error("statement backfill group failed",
				zap.String("client_id", group.key.ClientID),
				zap.String("month", group.key.Start().Format("2006-01")),
				zap.Int("orders", len(group.orders)),
				zap.Error(err))
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
		summary.Assigned += assigned
		changed = append(changed, stmtID)
	}
	if summary.Failed > 0 {
		result = metrics.ResultPartial
	}

	if len(changed) > 0 {
		evt := eventing.StatementsChanged{StatementIDs: dedupe(changed), OccurredAt: s.clock.Now()}
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("publish statements changed failed", zap.Error(err))
		}
	}
	s.logger.Info("statement backfill finished",
		zap.Int("orders", summary.Orders),
		zap.Int("groups", summary.Groups),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("repaired", summary.Repaired),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// repairTotals rewrites stored totals that differ from the sum of their member
// orders. A total is left stale when a run assigned orders but failed before
// updating it; those orders are no longer unassigned, so only this pass can fix
// the statement.
func (s *BackfillService) repairTotals(ctx context.Context, summary *BackfillResult) ([]string, error) {
	stmts, err := s.statements.List(ctx, billing.StatementFilter{})
	if err != nil {
		return nil, apperr.Store("list statements", err)
	}
	var repaired []string
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		members, err := s.orders.ListByStatement(ctx, stmt.ID)
		if err != nil {
			summary.Failed++
			s.logger.Error("statement total check failed", zap.String("statement_id", stmt.ID), zap.Error(err))
			continue
		}
		total := billing.OrdersTotal(members)
		if total.Equal(stmt.TotalAmount) {
			continue
		}
		if err := s.statements.UpdateTotal(ctx, stmt.ID, total, s.clock.Now()); err != nil {
			summary.Failed++
			s.logger.Error("statement total repair failed", zap.String("statement_id", stmt.ID), zap.Error(err))
			continue
		}
		s.logger.Warn("statement total repaired",
			zap.String("statement_id", stmt.ID),
			zap.String("stored", stmt.TotalAmount.StringFixed(2)),
			zap.String("members", total.StringFixed(2)))
		summary.Repaired++
		repaired = append(repaired, stmt.ID)
	}
	return repaired, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *BackfillService) processGroup(ctx context.Context, group orderGroup) (string, bool, int, error) {
	month := group.key.Start()
	groupTotal := billing.OrdersTotal(group.orders)

	stmt, err := s.statements.FindByClientMonth(ctx, group.key.ClientID, month)
	if err != nil {
		return "", false, 0, fmt.Errorf("find statement: %w", err)
	}
	created := false
	if stmt == nil {
		now := s.clock.Now()
		stmt, created, err = s.statements.CreateOrGet(ctx, billing.Statement{
			ID:             s.newID(),
			ClientID:       group.key.ClientID,
			StatementMonth: month,
			TotalAmount:    groupTotal,
			DateGenerated:  now,
			AgingCategory:  billing.DefaultAgingCategory,
			UpdatedAt:      now,
		})
		if err != nil {
			return "", false, 0, fmt.Errorf("create statement: %w", err)
		}
	}

	ids := make([]string, 0, len(group.orders))
	for _, o := range group.orders {
		ids = append(ids, o.ID)
	}
	assigned, err := s.orders.AssignStatement(ctx, ids, stmt.ID)
	if err != nil {
		return stmt.ID, created, 0, fmt.Errorf("assign orders: %w", err)
	}

	// Recompute from every order now referencing the statement so repeated runs
	// never add a group twice.
	members, err := s.orders.ListByStatement(ctx, stmt.ID)
	if err != nil {
		return stmt.ID, created, assigned, fmt.Errorf("list statement orders: %w", err)
	}
	total := billing.OrdersTotal(members)
	if !total.Equal(stmt.TotalAmount) {
		if err := s.statements.UpdateTotal(ctx, stmt.ID, total, s.clock.Now()); err != nil {
			return stmt.ID, created, assigned, fmt.Errorf("update statement total: %w", err)
		}
	}
	return stmt.ID, created, assigned, nil
}

// groupOrders returns the client-month groups and the orders that cannot be
// grouped.
func groupOrders(orders []billing.Order) ([]orderGroup, []billing.Order) {
	index := make(map[billing.MonthKey]int)
	var groups []orderGroup
	var skipped []billing.Order
	for _, o := range orders {
		if o.ClientID == "" || o.DeliveryDate.IsZero() {
			skipped = append(skipped, o)
			continue
		}
		key := billing.KeyOf(o)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, orderGroup{key: key})
		}
		groups[i].orders = append(groups[i].orders, o)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].key.Less(groups[j].key)
	})
	return groups, skipped
}
