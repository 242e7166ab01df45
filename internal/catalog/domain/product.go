package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"gelato-ops/internal/apperr"
)

// Product is a catalog item.
type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	ProductType string              `json:"product_type"`
	GelatoType  string              `json:"gelato_type"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	UnitWeight  decimal.NullDecimal `json:"unit_weight"`
	BillingName string              `json:"billing_name"`
}

// ClientProductPrice overrides a product's unit price for one client.
type ClientProductPrice struct {
	ClientID  string          `json:"client_id"`
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PriceEdit is one requested custom price change.
type PriceEdit struct {
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Validate checks a single edit.
func (e PriceEdit) Validate() error {
	if e.ProductID == "" {
		return apperr.Invalid("product_id", "product id is required")
	}
	if e.UnitPrice.IsNegative() {
		return apperr.Invalid("unit_price", "unit price for %s must not be negative", e.ProductID)
	}
	if !e.UnitPrice.Equal(e.UnitPrice.Round(2)) {
		return apperr.Invalid("unit_price", "unit price for %s has more than 2 decimals", e.ProductID)
	}
	return nil
}
