package postgres

import (
	"context"
	"database/sql"
	"errors"

	catalog "gelato-ops/internal/catalog/domain"
)

// PriceRepository stores client specific product prices.
type PriceRepository struct {
	db *sql.DB
}

// NewPriceRepository constructs a repository.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

var _ catalog.PriceRepository = (*PriceRepository)(nil)

// UpsertPrice inserts or replaces one client price.
func (r *PriceRepository) UpsertPrice(ctx context.Context, price catalog.ClientProductPrice) error {
	if r == nil || r.db == nil {
		return errors.New("price repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO client_product_prices (client_id, product_id, unit_price, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (client_id, product_id) DO UPDATE
SET unit_price = EXCLUDED.unit_price, updated_at = EXCLUDED.updated_at`,
		price.ClientID, price.ProductID, price.UnitPrice, price.UpdatedAt)
	return err
}

// ListPrices returns the custom prices of a client ordered by product.
func (r *PriceRepository) ListPrices(ctx context.Context, clientID string) ([]catalog.ClientProductPrice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("price repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT client_id, product_id, unit_price, updated_at
FROM client_product_prices
WHERE client_id = $1
ORDER BY product_id ASC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.ClientProductPrice
	for rows.Next() {
		var p catalog.ClientProductPrice
		if err := rows.Scan(&p.ClientID, &p.ProductID, &p.UnitPrice, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt = p.UpdatedAt.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
