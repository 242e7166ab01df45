package documents

import (
	"strings"

	"github.com/shopspring/decimal"

	billing "gelato-ops/internal/billing/domain"
	catalog "gelato-ops/internal/catalog/domain"
	templates "gelato-ops/internal/templates/domain"
)

const (
	invoiceTitle   = "TAX INVOICE"
	statementTitle = "STATEMENT OF ACCOUNT"
)

// BuildInvoiceModel assembles the invoice of one order. The stored order total
// stays authoritative; subtotal and tax come from the line items.
func BuildInvoiceModel(order *billing.Order, client *catalog.Client, items []billing.LineItem, header, footer *templates.Template) (*Model, error) {
	if order == nil {
		return nil, ErrNilOrder
	}
	if client == nil {
		return nil, ErrMissingClient
	}
	if len(items) == 0 {
		return nil, ErrEmptyInvoiceSet
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			Description:  item.Description(),
			ProductLabel: productLabel(item),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Amount:       item.Subtotal,
		})
	}

	subtotal := billing.LineSubtotal(items)
	tax := billing.Tax(subtotal)
	recipient := Recipient{Name: client.BusinessName, AddressLines: client.AddressLines()}
	if len(recipient.AddressLines) == 0 {
		recipient.AddressLines = catalog.FlatAddressLines(order.DeliveryAddress)
	}

	return &Model{
		Kind:      KindInvoice,
		Title:     invoiceTitle,
		Header:    block(header),
		Recipient: recipient,
		Meta: Meta{
			Number:    order.InvoiceID,
			Date:      order.DeliveryDate,
			DueDate:   order.DeliveryDate,
			Generated: order.DeliveryDate,
		},
		Lines: lines,
		Totals: Totals{
			Subtotal: subtotal,
			Tax:      tax,
			Total:    order.TotalAmount,
			Drift:    billing.Drift(subtotal, tax, order.TotalAmount),
		},
		Footer:   block(footer),
		Filename: InvoiceFilename(order.InvoiceID, order.DeliveryDate),
	}, nil
}

// BuildStatementModel assembles a statement with one line per order and the
// aging row of its category.
func BuildStatementModel(stmt *billing.Statement, client *catalog.Client, orders []billing.Order, header *templates.Template) (*Model, error) {
	if stmt == nil {
		return nil, ErrNilStatement
	}
	if client == nil {
		return nil, ErrMissingClient
	}
	if len(orders) == 0 {
		return nil, ErrEmptyInvoiceSet
	}

	lines := make([]Line, 0, len(orders))
	for _, o := range orders {
		open := o.TotalAmount
		lines = append(lines, Line{
			Date:        o.DeliveryDate,
			Reference:   o.InvoiceID,
			Description: deliveryDescription(o),
			Amount:      o.TotalAmount,
			OpenAmount:  &open,
		})
	}

	subtotal := billing.OrdersTotal(orders)
	aging := billing.AgingAmounts(*stmt)
	month := billing.MonthStart(stmt.StatementMonth)

	return &Model{
		Kind:      KindStatement,
		Title:     statementTitle,
		Header:    block(header),
		Recipient: Recipient{Name: client.BusinessName, AddressLines: client.AddressLines()},
		Meta: Meta{
			Number:    stmt.ID,
			Date:      stmt.DateGenerated,
			DueDate:   stmt.DateGenerated,
			Period:    month.Format("January 2006"),
			Generated: stmt.DateGenerated,
		},
		Lines: lines,
		Totals: Totals{
			Subtotal: subtotal,
			Tax:      decimal.Zero,
			Total:    stmt.TotalAmount,
			Drift:    billing.Drift(subtotal, decimal.Zero, stmt.TotalAmount),
		},
		Aging:    &aging,
		Filename: StatementFilename(stmt.ID, month, "pdf"),
	}, nil
}

func block(tpl *templates.Template) *Block {
	if tpl == nil {
		return nil
	}
	lines := tpl.Lines
	if limit := tpl.Kind.MaxLines(); len(lines) > limit {
		lines = lines[:limit]
	}
	if len(lines) == 0 {
		return nil
	}
	return &Block{Name: tpl.Name, Lines: append([]string(nil), lines...)}
}

func productLabel(item billing.LineItem) string {
	parts := make([]string, 0, 2)
	if item.ProductName != "" && item.ProductName != item.Description() {
		parts = append(parts, item.ProductName)
	}
	if item.GelatoType != "" {
		parts = append(parts, item.GelatoType)
	}
	return strings.Join(parts, " / ")
}

func deliveryDescription(o billing.Order) string {
	if addr := strings.Join(catalog.FlatAddressLines(o.DeliveryAddress), ", "); addr != "" {
		return "Delivery to " + addr
	}
	return "Goods delivered"
}
