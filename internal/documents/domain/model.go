package documents

import (
	"time"

	"github.com/shopspring/decimal"

	billing "gelato-ops/internal/billing/domain"
)

// Kind identifies the document being rendered.
type Kind string

const (
	KindInvoice   Kind = "invoice"
	KindStatement Kind = "statement"
)

// Block is a header or footer text block. The first header line renders bold.
type Block struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// Recipient is the bill-to block.
type Recipient struct {
	Name         string   `json:"name"`
	AddressLines []string `json:"address_lines"`
}

// Meta carries the document number and dates.
type Meta struct {
	Number    string    `json:"number"`
	Date      time.Time `json:"date"`
	DueDate   time.Time `json:"due_date"`
	Period    string    `json:"period,omitempty"`
	Generated time.Time `json:"generated"`
}

// Line is one table row.
type Line struct {
	Date         time.Time        `json:"date,omitempty"`
	Reference    string           `json:"reference,omitempty"`
	Description  string           `json:"description"`
	ProductLabel string           `json:"product_label,omitempty"`
	Quantity     int              `json:"quantity,omitempty"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Amount       decimal.Decimal  `json:"amount"`
	OpenAmount   *decimal.Decimal `json:"open_amount,omitempty"`
}

// Totals holds the summary band. Total is the stored authoritative amount;
// Drift is Total minus Subtotal plus Tax.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Drift    decimal.Decimal `json:"drift"`
}

// Model is the normalized structure handed to a renderer.
type Model struct {
	Kind      Kind                  `json:"kind"`
	Title     string                `json:"title"`
	Header    *Block                `json:"header,omitempty"`
	Recipient Recipient             `json:"recipient"`
	Meta      Meta                  `json:"meta"`
	Lines     []Line                `json:"lines"`
	Totals    Totals                `json:"totals"`
	Footer    *Block                `json:"footer,omitempty"`
	Aging     *billing.AgingBuckets `json:"aging,omitempty"`
	Filename  string                `json:"filename"`
}

// Reconciled reports whether the displayed subtotal and tax agree with the
// stored total within tolerance.
func (m *Model) Reconciled() bool {
	return billing.WithinTolerance(m.Totals.Drift)
}
