package billing

import "github.com/shopspring/decimal"

var (
	// GSTRate is the fixed goods and services tax rate.
	GSTRate = decimal.RequireFromString("0.09")
	// DriftTolerance is the accepted gap between line totals and the stored order total.
	DriftTolerance = decimal.RequireFromString("0.05")
)

// LineAmount returns round(quantity * unitPrice, 2).
func LineAmount(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// LineSubtotal sums the stored subtotal of each item.
func LineSubtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// Tax returns the GST on a subtotal, rounded to cents.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(GSTRate).Round(2)
}

// Drift returns total - (subtotal + tax).
func Drift(subtotal, tax, total decimal.Decimal) decimal.Decimal {
	return total.Sub(subtotal.Add(tax))
}

// WithinTolerance reports whether a drift is acceptable.
func WithinTolerance(drift decimal.Decimal) bool {
	return drift.Abs().LessThanOrEqual(DriftTolerance)
}

// OrdersTotal sums the total amount of each order.
func OrdersTotal(orders []Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
	}
	return total
}

// AgingBuckets distributes a statement balance across aging columns.
type AgingBuckets struct {
	Current decimal.Decimal `json:"current"`
	D1To30  decimal.Decimal `json:"d1_30"`
	D31To60 decimal.Decimal `json:"d31_60"`
	D61To90 decimal.Decimal `json:"d61_90"`
	D90Plus decimal.Decimal `json:"d90plus"`
	Total   decimal.Decimal `json:"total"`
}

// AgingAmounts puts the whole statement total into the bucket of its aging category.
// Unset or unknown categories fall into 1-30.
func AgingAmounts(stmt Statement) AgingBuckets {
	amount := stmt.TotalAmount
	buckets := AgingBuckets{
		Current: decimal.Zero,
		D1To30:  decimal.Zero,
		D31To60: decimal.Zero,
		D61To90: decimal.Zero,
		D90Plus: decimal.Zero,
		Total:   amount,
	}
	switch stmt.AgingCategory {
	case AgingCurrent:
		buckets.Current = amount
	case Aging31To60:
		buckets.D31To60 = amount
	case Aging61To90:
		buckets.D61To90 = amount
	case AgingOver90:
		buckets.D90Plus = amount
	default:
		buckets.D1To30 = amount
	}
	return buckets
}
