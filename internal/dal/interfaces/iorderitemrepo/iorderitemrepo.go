package iorderitemrepo

import (
	"context"

	"github.com/microshop/orders/internal/service/models/orderitem"
)

// IOrderItemRepository is an interface for the order item postgres repository.
type IOrderItemRepository interface {
	BulkInsert(ctx context.Context, orderItems []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	QueryByOrderID(ctx context.Context, orderID string) ([]orderitem.OrderItem, error)
}
