package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	billing "gelato-ops/internal/billing/domain"
)

const orderColumns = `id, client_id, order_date, delivery_date, delivery_address, total_amount,
	status, tracking_number, invoice_id, statement_id, created_at, updated_at`

// OrderRepository reads orders and their line items.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository constructs a repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ billing.OrderRepository = (*OrderRepository)(nil)

// ListUnassigned returns every order without a statement.
func (r *OrderRepository) ListUnassigned(ctx context.Context) ([]billing.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repo: nil db")
	}
	return r.queryOrders(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE statement_id IS NULL
ORDER BY client_id ASC, delivery_date ASC, id ASC`)
}

// ListByStatement returns the orders grouped under a statement.
func (r *OrderRepository) ListByStatement(ctx context.Context, statementID string) ([]billing.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repo: nil db")
	}
	return r.queryOrders(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE statement_id = $1
ORDER BY delivery_date ASC, id ASC`, statementID)
}

// GetByID fetches an order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*billing.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE id = $1`, id)
	return scanOrder(row)
}

// ListLineItems returns the line items of an order joined with their products.
func (r *OrderRepository) ListLineItems(ctx context.Context, orderID string) ([]billing.LineItem, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("order repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.subtotal,
	oi.product_type, oi.billing_name,
	COALESCE(p.name, ''), COALESCE(p.gelato_type, ''), COALESCE(p.weight, 0)
FROM order_items oi
LEFT JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = $1
ORDER BY oi.id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.LineItem
	for rows.Next() {
		var item billing.LineItem
		if err := rows.Scan(
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.ProductType,
			&item.BillingName,
			&item.ProductName,
			&item.GelatoType,
			&item.UnitWeight,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AssignStatement sets the statement on every listed order that has none yet.
func (r *OrderRepository) AssignStatement(ctx context.Context, orderIDs []string, statementID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("order repo: nil db")
	}
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET statement_id = $1, updated_at = $2
WHERE id = ANY($3) AND statement_id IS NULL`, statementID, time.Now().UTC(), orderIDs)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]billing.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		if o != nil {
			result = append(result, *o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*billing.Order, error) {
	var o billing.Order
	var status string
	var total decimal.Decimal
	var statementID sql.NullString
	err := row.Scan(
		&o.ID,
		&o.ClientID,
		&o.OrderDate,
		&o.DeliveryDate,
		&o.DeliveryAddress,
		&total,
		&status,
		&o.TrackingNumber,
		&o.InvoiceID,
		&statementID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.TotalAmount = total
	o.Status = billing.OrderStatus(status)
	if statementID.Valid {
		ref := statementID.String
		o.StatementID = &ref
	}
	o.OrderDate = o.OrderDate.UTC()
	o.DeliveryDate = o.DeliveryDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
