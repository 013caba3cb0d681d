package orderitem

import "github.com/shopspring/decimal"

// OrderItem is one priced line within an order. Price is a snapshot of the
// product price at order creation time, resolved from the products service;
// the client-supplied price is never stored.
type OrderItem struct {
	ID        int64           `json:"id,omitempty"`
	OrderID   string          `json:"orderId,omitempty"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`

	// Name is resolved from the products service when the order is
	// returned to the caller. It is never persisted.
	Name string `json:"name,omitempty"`
}
