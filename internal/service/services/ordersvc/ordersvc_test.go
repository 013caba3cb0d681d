package ordersvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microshop/orders/internal/dal/interfaces/iorderitemrepo"
	"github.com/microshop/orders/internal/dal/interfaces/iorderrepo"
	"github.com/microshop/orders/internal/dal/interfaces/ioutboxrepo"
	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/orderstatus"
	"github.com/microshop/orders/internal/service/models/outbox"
	"github.com/microshop/orders/internal/service/models/product"
	"github.com/microshop/orders/pkg/rpcerror"
)

// --- Fake implementations ---

type fakeValidator struct {
	products []product.Product
	err      error
	calls    [][]int64
}

func (f *fakeValidator) ValidateProducts(_ context.Context, ids []int64) ([]product.Product, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}

	return f.products, nil
}

type fakeOrderRepo struct {
	store       map[string]order.Order
	inserted    []order.Order
	insertErr   error
	updateCalls int
}

func (f *fakeOrderRepo) Insert(_ context.Context, o order.Order) (*order.Order, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, o)
	f.store[o.ID] = o

	return &o, nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.store[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}

	return &o, nil
}

func (f *fakeOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	matched := f.matching(filter.Status)

	if filter.Offset >= len(matched) {
		return []order.Order{}, nil
	}
	matched = matched[filter.Offset:]

	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (f *fakeOrderRepo) Count(_ context.Context, status *orderstatus.Status) (int, error) {
	return len(f.matching(status)), nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id string, status orderstatus.Status) (*order.Order, error) {
	f.updateCalls++
	o, ok := f.store[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	f.store[id] = o

	return &o, nil
}

func (f *fakeOrderRepo) matching(status *orderstatus.Status) []order.Order {
	matched := []order.Order{}
	for _, o := range f.store {
		if status == nil || o.Status == *status {
			matched = append(matched, o)
		}
	}

	return matched
}

type fakeOrderItemRepo struct {
	store     map[string][]orderitem.OrderItem
	insertErr error
}

func (f *fakeOrderItemRepo) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for i := range items {
		items[i].ID = int64(i + 1)
		f.store[items[i].OrderID] = append(f.store[items[i].OrderID], items[i])
	}

	return items, nil
}

func (f *fakeOrderItemRepo) QueryByOrderID(_ context.Context, orderID string) ([]orderitem.OrderItem, error) {
	return f.store[orderID], nil
}

type fakeOutboxRepo struct {
	messages  []outbox.Message
	insertErr error
}

func (f *fakeOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.messages = append(f.messages, msg)

	return nil
}

func (f *fakeOutboxRepo) GetPendingMessages(_ context.Context, _ int) ([]outbox.Message, error) {
	return f.messages, nil
}

func (f *fakeOutboxRepo) Delete(_ context.Context, _ int64) error { return nil }

func (f *fakeOutboxRepo) UpdateRetry(_ context.Context, _ int64, _ int, _ string, _ time.Time) error {
	return nil
}

type fakeUOW struct {
	orderRepo     *fakeOrderRepo
	orderItemRepo *fakeOrderItemRepo
	outboxRepo    *fakeOutboxRepo
	began         bool
	committed     bool
	rolledBack    bool
}

func (f *fakeUOW) Begin(_ context.Context) error {
	f.began = true

	return nil
}

func (f *fakeUOW) Commit(_ context.Context) error {
	f.committed = true

	return nil
}

func (f *fakeUOW) Rollback(_ context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}

	return nil
}

func (f *fakeUOW) OrderRepository() iorderrepo.IOrderRepository { return f.orderRepo }

func (f *fakeUOW) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return f.orderItemRepo
}

func (f *fakeUOW) OutboxRepository() ioutboxrepo.IOutboxRepository { return f.outboxRepo }

// --- Helpers ---

func newFakeUOW() *fakeUOW {
	return &fakeUOW{
		orderRepo:     &fakeOrderRepo{store: map[string]order.Order{}},
		orderItemRepo: &fakeOrderItemRepo{store: map[string][]orderitem.OrderItem{}},
		outboxRepo:    &fakeOutboxRepo{},
	}
}

func newTestService(work *fakeUOW, validator *fakeValidator) *OrderService {
	return MustNewOrderService(
		WithProductValidator(validator),
		WithUnitOfWorkFactory(func() unitOfWork { return work }),
	)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- Tests ---

func TestCreate_RecomputesTotalsFromResolvedPrices(t *testing.T) {
	work := newFakeUOW()
	validator := &fakeValidator{products: []product.Product{
		{ID: 1, Name: "Widget", Price: price("10")},
		{ID: 2, Name: "Gadget", Price: price("5")},
	}}
	svc := newTestService(work, validator)

	created, err := svc.Create(context.Background(), []orderitem.OrderItem{
		// Client-supplied prices are deliberately wrong: they must be ignored.
		{ProductID: 1, Quantity: 2, Price: price("0.01")},
		{ProductID: 2, Quantity: 3, Price: price("999")},
	})
	require.NoError(t, err)

	assert.True(t, created.TotalAmount.Equal(price("35")))
	assert.Equal(t, 5, created.TotalItems)
	assert.Equal(t, orderstatus.StatusPending, created.Status)
	assert.True(t, work.committed)

	require.Len(t, created.OrderItems, 2)
	assert.True(t, created.OrderItems[0].Price.Equal(price("10")))
	assert.Equal(t, "Widget", created.OrderItems[0].Name)
	assert.True(t, created.OrderItems[1].Price.Equal(price("5")))
	assert.Equal(t, "Gadget", created.OrderItems[1].Name)
}

func TestCreate_DeduplicatesProductIdsInLookup(t *testing.T) {
	work := newFakeUOW()
	validator := &fakeValidator{products: []product.Product{
		{ID: 7, Name: "Widget", Price: price("2")},
	}}
	svc := newTestService(work, validator)

	_, err := svc.Create(context.Background(), []orderitem.OrderItem{
		{ProductID: 7, Quantity: 1},
		{ProductID: 7, Quantity: 4},
	})
	require.NoError(t, err)

	require.Len(t, validator.calls, 1)
	assert.Equal(t, []int64{7}, validator.calls[0])
}

func TestCreate_MissingProductFailsWithoutPersisting(t *testing.T) {
	work := newFakeUOW()
	validator := &fakeValidator{products: []product.Product{
		{ID: 1, Name: "Widget", Price: price("10")},
	}}
	svc := newTestService(work, validator)

	_, err := svc.Create(context.Background(), []orderitem.OrderItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	})

	require.Error(t, err)
	assert.Equal(t, 400, rpcerror.StatusCode(err))
	assert.Equal(t, "Check logs", err.Error())
	assert.False(t, work.began)
	assert.Empty(t, work.orderRepo.inserted)
}

func TestCreate_LookupFailureFailsWithoutPersisting(t *testing.T) {
	work := newFakeUOW()
	validator := &fakeValidator{err: errors.New("broker unavailable")}
	svc := newTestService(work, validator)

	_, err := svc.Create(context.Background(), []orderitem.OrderItem{
		{ProductID: 1, Quantity: 1},
	})

	require.Error(t, err)
	assert.Equal(t, 400, rpcerror.StatusCode(err))
	assert.Equal(t, "Check logs", err.Error())
	assert.False(t, work.began)
}

func TestCreate_InsertFailureRollsBack(t *testing.T) {
	work := newFakeUOW()
	work.orderRepo.insertErr = errors.New("connection reset")
	validator := &fakeValidator{products: []product.Product{
		{ID: 1, Name: "Widget", Price: price("10")},
	}}
	svc := newTestService(work, validator)

	_, err := svc.Create(context.Background(), []orderitem.OrderItem{
		{ProductID: 1, Quantity: 1},
	})

	require.Error(t, err)
	assert.Equal(t, 400, rpcerror.StatusCode(err))
	assert.False(t, work.committed)
	assert.True(t, work.rolledBack)
}

func TestCreate_EnqueuesCreatedEventInSameTransaction(t *testing.T) {
	work := newFakeUOW()
	validator := &fakeValidator{products: []product.Product{
		{ID: 1, Name: "Widget", Price: price("10")},
	}}
	svc := newTestService(work, validator)

	created, err := svc.Create(context.Background(), []orderitem.OrderItem{
		{ProductID: 1, Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, work.outboxRepo.messages, 1)
	assert.Equal(t, "order.created", work.outboxRepo.messages[0].RoutingKey)
	assert.Contains(t, string(work.outboxRepo.messages[0].Payload), created.ID)
}

func TestGetByID_NotFound(t *testing.T) {
	svc := newTestService(newFakeUOW(), &fakeValidator{})

	_, err := svc.GetByID(context.Background(), "b5fefc9a-0000-0000-0000-000000000000")

	require.Error(t, err)
	assert.Equal(t, 404, rpcerror.StatusCode(err))
	assert.Contains(t, err.Error(), "b5fefc9a-0000-0000-0000-000000000000")
}

func TestGetByID_AnnotatesProductNames(t *testing.T) {
	work := newFakeUOW()
	work.orderRepo.store["o1"] = order.Order{ID: "o1", Status: orderstatus.StatusPending}
	work.orderItemRepo.store["o1"] = []orderitem.OrderItem{
		{ID: 1, OrderID: "o1", ProductID: 3, Quantity: 2, Price: price("4")},
	}
	validator := &fakeValidator{products: []product.Product{
		{ID: 3, Name: "Sprocket", Price: price("4")},
	}}
	svc := newTestService(work, validator)

	found, err := svc.GetByID(context.Background(), "o1")
	require.NoError(t, err)

	require.Len(t, found.OrderItems, 1)
	assert.Equal(t, "Sprocket", found.OrderItems[0].Name)
}

func TestGetByID_LookupFailurePropagatesUnwrapped(t *testing.T) {
	work := newFakeUOW()
	work.orderRepo.store["o1"] = order.Order{ID: "o1", Status: orderstatus.StatusPending}
	work.orderItemRepo.store["o1"] = []orderitem.OrderItem{
		{ID: 1, OrderID: "o1", ProductID: 3, Quantity: 2},
	}
	lookupErr := errors.New("broker unavailable")
	svc := newTestService(work, &fakeValidator{err: lookupErr})

	_, err := svc.GetByID(context.Background(), "o1")

	// Unlike Create, the failure is not flattened to the generic error.
	require.ErrorIs(t, err, lookupErr)
}

func TestChangeStatus_SameStatusIsNoOp(t *testing.T) {
	work := newFakeUOW()
	work.orderRepo.store["o1"] = order.Order{ID: "o1", Status: orderstatus.StatusPending}
	svc := newTestService(work, &fakeValidator{})

	first, err := svc.ChangeStatus(context.Background(), "o1", orderstatus.StatusPending)
	require.NoError(t, err)
	second, err := svc.ChangeStatus(context.Background(), "o1", orderstatus.StatusPending)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, 0, work.orderRepo.updateCalls)
	assert.Empty(t, work.outboxRepo.messages)
}

func TestChangeStatus_UpdatesAndEnqueuesEvent(t *testing.T) {
	work := newFakeUOW()
	work.orderRepo.store["o1"] = order.Order{ID: "o1", Status: orderstatus.StatusPending}
	svc := newTestService(work, &fakeValidator{})

	updated, err := svc.ChangeStatus(context.Background(), "o1", orderstatus.StatusDelivered)
	require.NoError(t, err)

	assert.Equal(t, orderstatus.StatusDelivered, updated.Status)
	assert.True(t, work.committed)
	require.Len(t, work.outboxRepo.messages, 1)
	assert.Equal(t, "order.status_changed", work.outboxRepo.messages[0].RoutingKey)
}

func TestChangeStatus_NoTerminalStateLock(t *testing.T) {
	work := newFakeUOW()
	work.orderRepo.store["o1"] = order.Order{ID: "o1", Status: orderstatus.StatusCancelled}
	svc := newTestService(work, &fakeValidator{})

	updated, err := svc.ChangeStatus(context.Background(), "o1", orderstatus.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, orderstatus.StatusPending, updated.Status)
}

func TestChangeStatus_NotFound(t *testing.T) {
	svc := newTestService(newFakeUOW(), &fakeValidator{})

	_, err := svc.ChangeStatus(context.Background(), "missing", orderstatus.StatusDelivered)

	require.Error(t, err)
	assert.Equal(t, 404, rpcerror.StatusCode(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestList_StatusFilterAndMeta(t *testing.T) {
	work := newFakeUOW()
	for _, o := range []order.Order{
		{ID: "p1", Status: orderstatus.StatusPending},
		{ID: "p2", Status: orderstatus.StatusPending},
		{ID: "d1", Status: orderstatus.StatusDelivered},
		{ID: "d2", Status: orderstatus.StatusDelivered},
		{ID: "d3", Status: orderstatus.StatusDelivered},
	} {
		work.orderRepo.store[o.ID] = o
	}
	svc := newTestService(work, &fakeValidator{})

	pending := orderstatus.StatusPending
	page, err := svc.List(context.Background(), order.PaginationModel{
		Status: &pending,
		Page:   1,
		Limit:  10,
	})
	require.NoError(t, err)

	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Meta.Total)
	assert.Equal(t, 1, page.Meta.Page)
	assert.Equal(t, 1, page.Meta.LastPage)
}

func TestList_LastPageIsCeil(t *testing.T) {
	work := newFakeUOW()
	for _, id := range []string{"a", "b", "c"} {
		work.orderRepo.store[id] = order.Order{ID: id, Status: orderstatus.StatusPending}
	}
	svc := newTestService(work, &fakeValidator{})

	page, err := svc.List(context.Background(), order.PaginationModel{Page: 1, Limit: 2})
	require.NoError(t, err)

	assert.Len(t, page.Data, 2)
	assert.Equal(t, 3, page.Meta.Total)
	assert.Equal(t, 2, page.Meta.LastPage)
}

func TestList_OutOfRangePageReturnsEmptyData(t *testing.T) {
	work := newFakeUOW()
	work.orderRepo.store["a"] = order.Order{ID: "a", Status: orderstatus.StatusPending}
	svc := newTestService(work, &fakeValidator{})

	page, err := svc.List(context.Background(), order.PaginationModel{Page: 5, Limit: 10})
	require.NoError(t, err)

	assert.Empty(t, page.Data)
	assert.Equal(t, 1, page.Meta.Total)
	assert.Equal(t, 5, page.Meta.Page)
}
