package production

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned when the report range is empty or reversed.
var ErrInvalidRange = errors.New("production: from must not be after to")

// Item is one delivered line item joined with its order, client and product.
type Item struct {
	DeliveryDate time.Time
	CustomerName string
	BillingName  string
	ProductType  string
	ProductName  string
	GelatoType   string
	Quantity     int
	UnitWeight   decimal.NullDecimal
}

// Description returns the memo text of the item.
func (i Item) Description() string {
	if i.BillingName != "" {
		return i.BillingName
	}
	if i.ProductType != "" {
		return i.ProductType
	}
	return i.ProductName
}

// Row is one production report line.
type Row struct {
	DeliveryDate time.Time       `json:"delivery_date"`
	CustomerName string          `json:"customer_name"`
	Description  string          `json:"description"`
	ProductType  string          `json:"product_type"`
	Quantity     int             `json:"quantity"`
	GelatoType   string          `json:"gelato_type"`
	Weight       decimal.Decimal `json:"weight_kg"`
}

// Range is an inclusive delivery-date range.
type Range struct {
	From time.Time
	To   time.Time
}

// Validate checks the range bounds.
func (r Range) Validate() error {
	if r.From.IsZero() || r.To.IsZero() || r.From.After(r.To) {
		return ErrInvalidRange
	}
	return nil
}

// Source loads the line items delivered within a range.
type Source interface {
	DeliveredItems(ctx context.Context, rng Range) ([]Item, error)
}

// Weight returns unit weight times quantity, 0 when the weight is unknown.
func Weight(unitWeight decimal.NullDecimal, quantity int) decimal.Decimal {
	if !unitWeight.Valid {
		return decimal.Zero
	}
	return unitWeight.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
}

// BuildRows converts items to rows sorted by delivery date, then customer
// name, then description. Names compare byte by byte so case matters.
func BuildRows(items []Item) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, Row{
			DeliveryDate: dateOnly(item.DeliveryDate),
			CustomerName: item.CustomerName,
			Description:  item.Description(),
			ProductType:  item.ProductType,
			Quantity:     item.Quantity,
			GelatoType:   item.GelatoType,
			Weight:       Weight(item.UnitWeight, item.Quantity),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.DeliveryDate.Equal(b.DeliveryDate) {
			return a.DeliveryDate.Before(b.DeliveryDate)
		}
		if a.CustomerName != b.CustomerName {
			return a.CustomerName < b.CustomerName
		}
		return a.Description < b.Description
	})
	return rows
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
