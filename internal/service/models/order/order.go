package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/orderstatus"
)

// Order represents a customer order with aggregate totals and a status.
// TotalAmount and TotalItems are always recomputed server-side from the
// order items, never taken from client input.
type Order struct {
	ID          string                `json:"id"`
	TotalAmount decimal.Decimal       `json:"totalAmount"`
	TotalItems  int                   `json:"totalItems"`
	Status      orderstatus.Status    `json:"status"`
	Paid        bool                  `json:"paid"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	OrderItems  []orderitem.OrderItem `json:"orderItems,omitempty"`
}
