package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingCategory classifies a whole statement balance into one aging bucket.
type AgingCategory string

const (
	AgingCurrent AgingCategory = "current"
	Aging1To30   AgingCategory = "1-30"
	Aging31To60  AgingCategory = "31-60"
	Aging61To90  AgingCategory = "61-90"
	AgingOver90  AgingCategory = "90+"
)

// DefaultAgingCategory applies when a statement has no category.
const DefaultAgingCategory = Aging1To30

// ParseAgingCategory validates an aging category value.
func ParseAgingCategory(value string) (AgingCategory, error) {
	switch AgingCategory(value) {
	case AgingCurrent, Aging1To30, Aging31To60, Aging61To90, AgingOver90:
		return AgingCategory(value), nil
	default:
		return "", ErrInvalidAgingCategory
	}
}

// Statement is a monthly grouping of one client's orders.
type Statement struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	StatementMonth time.Time       `json:"statement_month"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DateGenerated  time.Time       `json:"date_generated"`
	AgingCategory  AgingCategory   `json:"aging_category"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MonthStart returns the first calendar day of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthKey identifies the (client, month) group a statement covers.
type MonthKey struct {
	ClientID string
	Year     int
	Month    time.Month
}

// KeyOf returns the grouping key of an order.
func KeyOf(o Order) MonthKey {
	return MonthKey{ClientID: o.ClientID, Year: o.DeliveryDate.Year(), Month: o.DeliveryDate.Month()}
}

// Start returns the statement month of the key.
func (k MonthKey) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Less orders keys by client, then month.
func (k MonthKey) Less(other MonthKey) bool {
	if k.ClientID != other.ClientID {
		return k.ClientID < other.ClientID
	}
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}
