package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/microshop/orders/internal/dal/interfaces/iorderitemrepo"
	"github.com/microshop/orders/internal/dal/interfaces/iorderrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ioutboxrepo"
	"github.com/microshop/orders/internal/dal/postgres"
	"github.com/microshop/orders/internal/dal/uow"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/orderstatus"
	"github.com/microshop/orders/internal/service/models/outbox"
	"github.com/microshop/orders/internal/service/models/product"
	"github.com/microshop/orders/pkg/rpcerror"
)

// OrderService is a service for managing orders.
type OrderService struct {
	pgClient *postgres.Client
	products productValidator
	newUOW   func() unitOfWork
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// productValidator resolves product ids to {id, name, price} records via the
// products service.
type productValidator interface {
	ValidateProducts(ctx context.Context, ids []int64) ([]product.Product, error)
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(s.pgClient)
		}
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
	}
}

// WithProductValidator sets the products RPC client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithProductValidator(products productValidator) option {
	return func(s *OrderService) {
		s.products = products
	}
}

// WithUnitOfWorkFactory overrides the unit of work constructor.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = factory
	}
}

// errCheckLogs is the single client-facing error for any failure during
// order creation. The actual cause is only logged.
func errCheckLogs() error {
	return rpcerror.New(http.StatusBadRequest, "Check logs")
}

// Create validates the referenced products against the products service,
// recomputes the order totals from the resolved prices, and persists the
// order with its items and an order-created outbox event in one transaction.
// Any failure aborts without persisting anything.
func (s *OrderService) Create(
	ctx context.Context,
	items []orderitem.OrderItem,
) (*order.Order, error) {
	productIds := distinctProductIds(items)

	products, err := s.products.ValidateProducts(ctx, productIds)
	if err != nil {
		slog.Error("Failed to validate products for order creation", "error", err)

		return nil, errCheckLogs()
	}

	productsByID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	// Totals are recomputed from the resolved prices; the client-supplied
	// price is never used.
	totalAmount := decimal.Zero
	totalItems := 0
	for i := range items {
		p, ok := productsByID[items[i].ProductID]
		if !ok {
			slog.Error("Product missing in validation response",
				"product_id", items[i].ProductID,
			)

			return nil, errCheckLogs()
		}

		items[i].Price = p.Price
		totalAmount = totalAmount.Add(p.Price.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
		totalItems += items[i].Quantity
	}

	now := time.Now()
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		slog.Error("Failed to begin transaction for order creation", "error", err)

		return nil, errCheckLogs()
	}
	defer func() {
		_ = work.Rollback(ctx)
	}()

	inserted, err := work.OrderRepository().Insert(ctx, order.Order{
		ID:          uuid.New().String(),
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
		Status:      orderstatus.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		slog.Error("Failed to insert order", "error", err)

		return nil, errCheckLogs()
	}

	for i := range items {
		items[i].OrderID = inserted.ID
	}

	insertedItems, err := work.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		slog.Error("Failed to insert order items", "error", err, "order_id", inserted.ID)

		return nil, errCheckLogs()
	}

	if err := s.enqueueCreatedEvent(ctx, work, inserted); err != nil {
		slog.Error("Failed to enqueue order created event", "error", err, "order_id", inserted.ID)

		return nil, errCheckLogs()
	}

	if err := work.Commit(ctx); err != nil {
		slog.Error("Failed to commit order creation", "error", err, "order_id", inserted.ID)

		return nil, errCheckLogs()
	}

	inserted.OrderItems = annotateNames(insertedItems, productsByID)

	slog.Info("Order created",
		"order_id", inserted.ID,
		"total_amount", inserted.TotalAmount.String(),
		"total_items", inserted.TotalItems,
	)

	return inserted, nil
}

// List returns one page of orders, optionally filtered by status, with
// pagination metadata. An out-of-range page yields an empty page, not an
// error.
func (s *OrderService) List(
	ctx context.Context,
	pagination order.PaginationModel,
) (*order.Page, error) {
	work := s.newUOW()

	total, err := work.OrderRepository().Count(ctx, pagination.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	data, err := work.OrderRepository().Query(ctx, &order.QueryOrdersModel{
		Status: pagination.Status,
		Limit:  pagination.Limit,
		Offset: (pagination.Page - 1) * pagination.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	lastPage := 0
	if pagination.Limit > 0 {
		lastPage = (total + pagination.Limit - 1) / pagination.Limit
	}

	return &order.Page{
		Data: data,
		Meta: order.PageMeta{
			Total:    total,
			Page:     pagination.Page,
			LastPage: lastPage,
		},
	}, nil
}

// GetByID fetches one order with its items and resolves the product names
// via the products service. Unlike Create, a products lookup failure here
// propagates to the caller as is.
func (s *OrderService) GetByID(ctx context.Context, id string) (*order.Order, error) {
	work := s.newUOW()

	found, err := work.OrderRepository().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, rpcerror.New(
				http.StatusNotFound,
				fmt.Sprintf("Order with id: %s not found", id),
			)
		}

		return nil, err
	}

	items, err := work.OrderItemRepository().QueryByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}

	products, err := s.products.ValidateProducts(ctx, distinctProductIds(items))
	if err != nil {
		return nil, err
	}

	productsByID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	for _, item := range items {
		if _, ok := productsByID[item.ProductID]; !ok {
			return nil, fmt.Errorf(
				"product %d missing in validation response",
				item.ProductID,
			)
		}
	}

	found.OrderItems = annotateNames(items, productsByID)

	return found, nil
}

// ChangeStatus moves an order to the requested status. Loading goes through
// GetByID so a missing order fails with the same not-found error. Changing
// to the current status is a no-op returning the order unchanged; there are
// no restricted transitions.
func (s *OrderService) ChangeStatus(
	ctx context.Context,
	id string,
	status orderstatus.Status,
) (*order.Order, error) {
	found, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if found.Status == status {
		return found, nil
	}

	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = work.Rollback(ctx)
	}()

	updated, err := work.OrderRepository().UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if err := s.enqueueStatusChangedEvent(ctx, work, found.Status, updated); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	slog.Info("Order status changed",
		"order_id", updated.ID,
		"old_status", found.Status,
		"new_status", updated.Status,
	)

	return updated, nil
}

func (s *OrderService) enqueueCreatedEvent(
	ctx context.Context,
	work unitOfWork,
	o *order.Order,
) error {
	msg, err := outbox.NewMessage(
		viper.GetString("rabbitmq.outbox.queue"),
		"order.created",
		outbox.OrderCreatedEvent{
			OrderID:     o.ID,
			TotalAmount: o.TotalAmount,
			TotalItems:  o.TotalItems,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
		},
		outboxMaxRetries(),
	)
	if err != nil {
		return err
	}

	return work.OutboxRepository().Insert(ctx, msg)
}

func (s *OrderService) enqueueStatusChangedEvent(
	ctx context.Context,
	work unitOfWork,
	oldStatus orderstatus.Status,
	o *order.Order,
) error {
	msg, err := outbox.NewMessage(
		viper.GetString("rabbitmq.outbox.queue"),
		"order.status_changed",
		outbox.OrderStatusChangedEvent{
			OrderID:   o.ID,
			OldStatus: oldStatus,
			NewStatus: o.Status,
			ChangedAt: o.UpdatedAt,
		},
		outboxMaxRetries(),
	)
	if err != nil {
		return err
	}

	return work.OutboxRepository().Insert(ctx, msg)
}

func outboxMaxRetries() int {
	maxRetries := viper.GetInt("rabbitmq.outbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	return maxRetries
}

func distinctProductIds(items []orderitem.OrderItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	return ids
}

func annotateNames(
	items []orderitem.OrderItem,
	productsByID map[int64]product.Product,
) []orderitem.OrderItem {
	annotated := make([]orderitem.OrderItem, len(items))
	for i, item := range items {
		item.Name = productsByID[item.ProductID].Name
		annotated[i] = item
	}

	return annotated
}
