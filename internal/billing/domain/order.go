package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Order is one client purchase event.
type Order struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"client_id"`
	OrderDate       time.Time       `json:"order_date"`
	DeliveryDate    time.Time       `json:"delivery_date"`
	DeliveryAddress string          `json:"delivery_address"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	TrackingNumber  string          `json:"tracking_number"`
	InvoiceID       string          `json:"invoice_id"`
	StatementID     *string         `json:"statement_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Assigned reports whether the order already belongs to a statement.
func (o Order) Assigned() bool {
	return o.StatementID != nil && *o.StatementID != ""
}

// LineItem is one product line within an order.
type LineItem struct {
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ProductType string          `json:"product_type"`
	BillingName string          `json:"billing_name"`

	// Joined from the product catalog.
	ProductName string          `json:"product_name"`
	GelatoType  string          `json:"gelato_type"`
	UnitWeight  decimal.Decimal `json:"unit_weight"`
}

// Description returns the invoice description for the line.
func (li LineItem) Description() string {
	if li.BillingName != "" {
		return li.BillingName
	}
	if li.ProductType != "" {
		return li.ProductType
	}
	return li.ProductName
}

// Consistent reports whether the stored subtotal matches quantity x unit price.
func (li LineItem) Consistent() bool {
	return li.Subtotal.Equal(LineAmount(li.Quantity, li.UnitPrice))
}
