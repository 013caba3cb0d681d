package amqprpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/orderstatus"
	"github.com/microshop/orders/pkg/rpcerror"
)

type fakeService struct {
	createdItems []orderitem.OrderItem
	statusArg    orderstatus.Status
	idArg        string
	result       *order.Order
	page         *order.Page
	err          error
}

func (f *fakeService) Create(_ context.Context, items []orderitem.OrderItem) (*order.Order, error) {
	f.createdItems = items

	return f.result, f.err
}

func (f *fakeService) List(_ context.Context, _ order.PaginationModel) (*order.Page, error) {
	return f.page, f.err
}

func (f *fakeService) GetByID(_ context.Context, id string) (*order.Order, error) {
	f.idArg = id

	return f.result, f.err
}

func (f *fakeService) ChangeStatus(_ context.Context, id string, status orderstatus.Status) (*order.Order, error) {
	f.idArg = id
	f.statusArg = status

	return f.result, f.err
}

func newTestServer(svc *fakeService) *Server {
	s := &Server{service: svc}
	s.handlers = map[string]handlerFunc{
		msgCreateOrder:       s.handleCreateOrder,
		msgFindAllOrders:     s.handleFindAllOrders,
		msgFindOneOrder:      s.handleFindOneOrder,
		msgChangeOrderStatus: s.handleChangeOrderStatus,
	}

	return s
}

func TestHandleCreateOrder_DecodesItems(t *testing.T) {
	svc := &fakeService{result: &order.Order{ID: "o1"}}
	s := newTestServer(svc)

	payload, err := s.handlers[msgCreateOrder](context.Background(),
		[]byte(`{"items":[{"productId":1,"quantity":2,"price":10}]}`))
	require.NoError(t, err)

	assert.Equal(t, svc.result, payload)
	require.Len(t, svc.createdItems, 1)
	assert.Equal(t, int64(1), svc.createdItems[0].ProductID)
}

func TestHandleCreateOrder_InvalidPayload(t *testing.T) {
	s := newTestServer(&fakeService{})

	_, err := s.handlers[msgCreateOrder](context.Background(), []byte(`{"items":[]}`))

	require.Error(t, err)
	assert.Equal(t, 400, rpcerror.StatusCode(err))
}

func TestHandleFindOneOrder_PassesID(t *testing.T) {
	svc := &fakeService{result: &order.Order{ID: "o7"}}
	s := newTestServer(svc)

	_, err := s.handlers[msgFindOneOrder](context.Background(), []byte(`{"id":"o7"}`))
	require.NoError(t, err)
	assert.Equal(t, "o7", svc.idArg)
}

func TestHandleChangeOrderStatus_ParsesStatus(t *testing.T) {
	svc := &fakeService{result: &order.Order{ID: "o1", Status: orderstatus.StatusDelivered}}
	s := newTestServer(svc)

	_, err := s.handlers[msgChangeOrderStatus](context.Background(),
		[]byte(`{"id":"o1","status":"DELIVERED"}`))
	require.NoError(t, err)
	assert.Equal(t, orderstatus.StatusDelivered, svc.statusArg)
}

func TestHandleChangeOrderStatus_RejectsInvalidStatus(t *testing.T) {
	s := newTestServer(&fakeService{})

	_, err := s.handlers[msgChangeOrderStatus](context.Background(),
		[]byte(`{"id":"o1","status":"SHIPPED"}`))

	require.Error(t, err)
	assert.Equal(t, 400, rpcerror.StatusCode(err))
}

func TestServiceErrorsArePassedThrough(t *testing.T) {
	svc := &fakeService{err: rpcerror.New(404, "Order with id: o9 not found")}
	s := newTestServer(svc)

	_, err := s.handlers[msgFindOneOrder](context.Background(), []byte(`{"id":"o9"}`))

	require.Error(t, err)
	assert.Equal(t, 404, rpcerror.StatusCode(err))
}

func TestUnstructuredErrorBodyDefaultsTo400(t *testing.T) {
	svc := &fakeService{err: errors.New("broker unavailable")}
	s := newTestServer(svc)

	_, err := s.handlers[msgFindOneOrder](context.Background(), []byte(`{"id":"o9"}`))
	require.Error(t, err)

	body := rpcerror.Body(err)
	assert.Equal(t, 400, body.Status)
	assert.Equal(t, "broker unavailable", body.Message)
}
