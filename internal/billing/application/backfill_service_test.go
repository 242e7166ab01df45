package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	billing "gelato-ops/internal/billing/domain"
	"gelato-ops/internal/billing/infrastructure/memory"
	"gelato-ops/internal/eventing"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("stmt-%03d", n)
	}
}

func order(id, client string, delivery time.Time, total string) billing.Order {
	return billing.Order{
		ID:           id,
		ClientID:     client,
		OrderDate:    delivery.AddDate(0, 0, -2),
		DeliveryDate: delivery,
		TotalAmount:  decimal.RequireFromString(total),
		Status:       billing.OrderStatusPending,
		InvoiceID:    "INV-" + id,
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func newBackfill(t *testing.T, store *memory.Store, opts ...BackfillOption) *BackfillService {
	t.Helper()
	opts = append([]BackfillOption{
		WithClock(fixedClock{now: day(2025, time.April, 1)}),
		WithIDGenerator(sequentialIDs()),
	}, opts...)
	svc, err := NewBackfillService(store.Orders(), store.Statements(), nil, opts...)
	require.NoError(t, err)
	return svc
}

func requireTotalsConsistent(t *testing.T, store *memory.Store) {
	t.Helper()
	for _, stmt := range store.AllStatements() {
		members, err := store.Orders().ListByStatement(context.Background(), stmt.ID)
		require.NoError(t, err)
		assert.True(t, billing.OrdersTotal(members).Equal(stmt.TotalAmount),
			"statement %s total %s != member sum %s", stmt.ID, stmt.TotalAmount, billing.OrdersTotal(members))
	}
}

func TestBackfill_CreatesOneStatementPerClientMonth(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 5), "100.00"))
	store.PutOrder(order("o2", "A", day(2025, time.March, 20), "50.00"))
	svc := newBackfill(t, store)

	result, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Groups)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Assigned)

	stmts := store.AllStatements()
	require.Len(t, stmts, 1)
	assert.Equal(t, "A", stmts[0].ClientID)
	assert.Equal(t, day(2025, time.March, 1), stmts[0].StatementMonth)
	assert.Equal(t, "150.00", stmts[0].TotalAmount.StringFixed(2))
	assert.Equal(t, billing.Aging1To30, stmts[0].AgingCategory)
	assert.Equal(t, day(2025, time.April, 1), stmts[0].DateGenerated)

	for _, id := range []string{"o1", "o2"} {
		o, ok := store.Order(id)
		require.True(t, ok)
		require.NotNil(t, o.StatementID)
		assert.Equal(t, stmts[0].ID, *o.StatementID)
	}
}

func TestBackfill_SeparatesMonths(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 31), "10.00"))
	store.PutOrder(order("o2", "A", day(2025, time.April, 1), "20.00"))
	svc := newBackfill(t, store)

	_, err := svc.Backfill(context.Background())
	require.NoError(t, err)

	stmts := store.AllStatements()
	require.Len(t, stmts, 2)
	march, err := store.Statements().FindByClientMonth(context.Background(), "A", day(2025, time.March, 1))
	require.NoError(t, err)
	april, err := store.Statements().FindByClientMonth(context.Background(), "A", day(2025, time.April, 1))
	require.NoError(t, err)
	require.NotNil(t, march)
	require.NotNil(t, april)
	assert.NotEqual(t, march.ID, april.ID)

	marchOrders, _ := store.Orders().ListByStatement(context.Background(), march.ID)
	aprilOrders, _ := store.Orders().ListByStatement(context.Background(), april.ID)
	require.Len(t, marchOrders, 1)
	require.Len(t, aprilOrders, 1)
	assert.Equal(t, "o1", marchOrders[0].ID)
	assert.Equal(t, "o2", aprilOrders[0].ID)
}

func TestBackfill_RerunAfterNewOrderUpdatesSameStatement(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 5), "100.00"))
	store.PutOrder(order("o2", "A", day(2025, time.March, 20), "50.00"))
	svc := newBackfill(t, store)
	_, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	first := store.AllStatements()
	require.Len(t, first, 1)

	store.PutOrder(order("o3", "A", day(2025, time.March, 28), "25.00"))
	result, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)

	second := store.AllStatements()
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "175.00", second[0].TotalAmount.StringFixed(2))
	requireTotalsConsistent(t, store)
}

func TestBackfill_IsIdempotent(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 5), "100.00"))
	store.PutOrder(order("o2", "B", day(2025, time.March, 6), "12.34"))
	store.PutOrder(order("o3", "B", day(2025, time.May, 6), "0.66"))
	svc := newBackfill(t, store)

	_, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	before := store.AllStatements()

	result, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Equal(t, 0, result.Orders)
	assert.Equal(t, before, store.AllStatements())
}

func TestBackfill_AtMostOneStatementPerClientMonthAcrossRuns(t *testing.T) {
	store := memory.NewStore()
	svc := newBackfill(t, store)
	clients := []string{"A", "B", "C"}
	n := 0
	for run := 0; run < 4; run++ {
		for _, client := range clients {
			for _, month := range []time.Month{time.January, time.February} {
				n++
				store.PutOrder(order(fmt.Sprintf("o%02d", n), client, day(2025, month, 1+run), "1.10"))
			}
		}
		_, err := svc.Backfill(context.Background())
		require.NoError(t, err)
	}

	seen := make(map[string]int)
	for _, stmt := range store.AllStatements() {
		seen[stmt.ClientID+stmt.StatementMonth.Format("2006-01")]++
		assert.Equal(t, "4.40", stmt.TotalAmount.StringFixed(2))
	}
	assert.Len(t, seen, 6)
	for key, count := range seen {
		assert.Equal(t, 1, count, key)
	}
	requireTotalsConsistent(t, store)
}

type failingStatements struct {
	billing.StatementRepository
	failClient string
}

func (f failingStatements) CreateOrGet(ctx context.Context, stmt billing.Statement) (*billing.Statement, bool, error) {
	if stmt.ClientID == f.failClient {
		return nil, false, errors.New("insert failed")
	}
	return f.StatementRepository.CreateOrGet(ctx, stmt)
}

func TestBackfill_FailedGroupIsSkipped(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 5), "100.00"))
	store.PutOrder(order("o2", "B", day(2025, time.March, 5), "40.00"))

	svc, err := NewBackfillService(store.Orders(), failingStatements{StatementRepository: store.Statements(), failClient: "A"}, nil,
		WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)

	result, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Created)

	stmts := store.AllStatements()
	require.Len(t, stmts, 1)
	assert.Equal(t, "B", stmts[0].ClientID)
	o1, _ := store.Order("o1")
	assert.False(t, o1.Assigned())
}

func TestBackfill_PublishesStatementsChanged(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 5), "100.00"))
	bus := eventing.NewBus()
	var events []eventing.StatementsChanged
	eventing.On(bus, func(_ context.Context, evt eventing.StatementsChanged) error {
		events = append(events, evt)
		return nil
	})
	svc := newBackfill(t, store, WithPublisher(bus))

	_, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	_, err = svc.Backfill(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, []string{"stmt-001"}, events[0].StatementIDs)
}

func TestBackfill_NoOrdersIsNoop(t *testing.T) {
	store := memory.NewStore()
	result, err := newBackfill(t, store).Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{}, result)
	assert.Empty(t, store.AllStatements())
}

type flakyTotals struct {
	billing.StatementRepository
	failures int
}

func (f *flakyTotals) UpdateTotal(ctx context.Context, id string, total decimal.Decimal, updatedAt time.Time) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("update failed")
	}
	return f.StatementRepository.UpdateTotal(ctx, id, total, updatedAt)
}

func TestBackfill_RepairsTotalLeftStaleByFailedUpdate(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 5), "100.00"))
	store.PutOrder(order("o2", "A", day(2025, time.March, 20), "50.00"))
	repo := &flakyTotals{StatementRepository: store.Statements()}
	svc, err := NewBackfillService(store.Orders(), repo, nil, WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	_, err = svc.Backfill(context.Background())
	require.NoError(t, err)

	store.PutOrder(order("o3", "A", day(2025, time.March, 28), "25.00"))
	repo.failures = 1
	result, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	o3, _ := store.Order("o3")
	require.True(t, o3.Assigned())
	assert.Equal(t, "150.00", store.AllStatements()[0].TotalAmount.StringFixed(2))

	result, err = svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Repaired)
	assert.True(t, result.Changed())
	assert.Equal(t, "175.00", store.AllStatements()[0].TotalAmount.StringFixed(2))
	requireTotalsConsistent(t, store)

	result, err = svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Repaired)
}

func TestBackfill_ReportsOrdersMissingClientOrDeliveryDate(t *testing.T) {
	store := memory.NewStore()
	store.PutOrder(order("o1", "A", day(2025, time.March, 5), "100.00"))
	store.PutOrder(order("o2", "", day(2025, time.March, 6), "10.00"))
	undated := order("o3", "B", day(2025, time.March, 7), "5.00")
	undated.DeliveryDate = time.Time{}
	store.PutOrder(undated)

	core, logs := observer.New(zapcore.WarnLevel)
	svc, err := NewBackfillService(store.Orders(), store.Statements(), zap.New(core), WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)

	result, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Orders)
	assert.Equal(t, 1, result.Groups)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Assigned)

	warned := logs.FilterMessage("order skipped by backfill, client or delivery date missing").All()
	require.Len(t, warned, 2)
	var ids []string
	for _, entry := range warned {
		ids = append(ids, entry.ContextMap()["order_id"].(string))
	}
	assert.ElementsMatch(t, []string{"o2", "o3"}, ids)
}
