package application

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gelato-ops/internal/apperr"
	billing "gelato-ops/internal/billing/domain"
)

// ReconcileRow compares a stored statement total with its member orders.
type ReconcileRow struct {
	StatementID    string
	ClientID       string
	StatementMonth string
	StoredTotal    decimal.Decimal
	OrdersTotal    decimal.Decimal
	Difference     decimal.Decimal
	Orders         int
	DriftingOrders int
}

// Balanced reports whether the statement total matches its orders and no
// order drifts from its line items.
func (r ReconcileRow) Balanced() bool {
	return r.Difference.IsZero() && r.DriftingOrders == 0
}

// Reconciler checks stored statement totals against the record store.
type Reconciler struct {
	statements billing.StatementRepository
	orders     billing.OrderRepository
	logger     *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(statements billing.StatementRepository, orders billing.OrderRepository, logger *zap.Logger) (*Reconciler, error) {
	if statements == nil {
		return nil, errors.New("reconciler: nil statement repository")
	}
	if orders == nil {
		return nil, errors.New("reconciler: nil order repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{statements: statements, orders: orders, logger: logger}, nil
}

// Run returns one row per statement matching filter. Orders without line items
// are not counted as drifting.
func (r *Reconciler) Run(ctx context.Context, filter billing.StatementFilter) ([]ReconcileRow, error) {
	list, err := r.statements.List(ctx, filter)
	if err != nil {
		return nil, apperr.Store("list statements", err)
	}
	rows := make([]ReconcileRow, 0, len(list))
	for _, stmt := range list {
		orders, err := r.orders.ListByStatement(ctx, stmt.ID)
		if err != nil {
			return nil, apperr.Store("list statement orders", err)
		}
		row := ReconcileRow{
			StatementID:    stmt.ID,
			ClientID:       stmt.ClientID,
			StatementMonth: billing.MonthStart(stmt.StatementMonth).Format("2006-01"),
			StoredTotal:    stmt.TotalAmount,
			OrdersTotal:    billing.OrdersTotal(orders),
			Orders:         len(orders),
		}
		row.Difference = row.StoredTotal.Sub(row.OrdersTotal)
		for _, o := range orders {
			items, err := r.orders.ListLineItems(ctx, o.ID)
			if err != nil {
				return nil, apperr.Store("list line items", err)
			}
			if len(items) == 0 {
				continue
			}
			subtotal := billing.LineSubtotal(items)
			if !billing.WithinTolerance(billing.Drift(subtotal, billing.Tax(subtotal), o.TotalAmount)) {
				row.DriftingOrders++
			}
		}
		if !row.Balanced() {
			r.logger.Warn("statement out of balance",
				zap.String("statement_id", stmt.ID),
				zap.String("difference", row.Difference.StringFixed(2)),
				zap.Int("drifting_orders", row.DriftingOrders))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteReconcileCSV writes rows with a header line.
func WriteReconcileCSV(w io.Writer, rows []ReconcileRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"statement_id",
		"client_id",
		"statement_month",
		"stored_total",
		"orders_total",
		"difference",
		"orders",
		"drifting_orders",
		"balanced",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.StatementID,
			row.ClientID,
			row.StatementMonth,
			row.StoredTotal.StringFixed(2),
			row.OrdersTotal.StringFixed(2),
			row.Difference.StringFixed(2),
			strconv.Itoa(row.Orders),
			strconv.Itoa(row.DriftingOrders),
			strconv.FormatBool(row.Balanced()),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
