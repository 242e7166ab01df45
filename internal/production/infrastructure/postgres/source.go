package postgres

import (
	"context"
	"database/sql"
	"errors"

	production "gelato-ops/internal/production/domain"
)

// Source reads delivered line items joined with orders, clients and products.
type Source struct {
	db *sql.DB
}

// NewSource constructs a source.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

var _ production.Source = (*Source)(nil)

// DeliveredItems returns the non-cancelled items delivered within rng.
func (s *Source) DeliveredItems(ctx context.Context, rng production.Range) ([]production.Item, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("production source: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT o.delivery_date, c.business_name, oi.billing_name, oi.product_type,
	COALESCE(p.name, ''), COALESCE(p.gelato_type, ''), oi.quantity, p.weight
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN clients c ON c.id = o.client_id
LEFT JOIN products p ON p.id = oi.product_id
WHERE o.delivery_date BETWEEN $1 AND $2
	AND o.status <> 'Cancelled'
ORDER BY o.delivery_date, c.business_name, oi.id`, rng.From.UTC(), rng.To.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []production.Item
	for rows.Next() {
		var item production.Item
		if err := rows.Scan(
			&item.DeliveryDate,
			&item.CustomerName,
			&item.BillingName,
			&item.ProductType,
			&item.ProductName,
			&item.GelatoType,
			&item.Quantity,
			&item.UnitWeight,
		); err != nil {
			return nil, err
		}
		item.DeliveryDate = item.DeliveryDate.UTC()
		result = append(result, item)
	}
	return result, rows.Err()
}
