package iorderrepo

import (
	"context"

	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderstatus"
)

// IOrderRepository is an interface for the order postgres repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (*order.Order, error)
	GetByID(ctx context.Context, id string) (*order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	Count(ctx context.Context, status *orderstatus.Status) (int, error)
	UpdateStatus(ctx context.Context, id string, status orderstatus.Status) (*order.Order, error)
}
