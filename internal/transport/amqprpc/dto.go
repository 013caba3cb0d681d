package amqprpc

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/internal/service/models/orderstatus"
	"github.com/microshop/orders/pkg/rpcerror"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// itemInCreateOrderRequest represents one line item in a create order
// request. Price is advisory only: the service recomputes it from the
// products service, so a client cannot manipulate stored prices.
type itemInCreateOrderRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  int     `json:"quantity"  validate:"required,gt=0"`
	Price     float64 `json:"price"     validate:"required,gt=0"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	Items []itemInCreateOrderRequest `json:"items" validate:"required,min=1,dive"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

// ToModel converts the request into service layer order items.
func (r *createOrderRequest) ToModel() []orderitem.OrderItem {
	items := make([]orderitem.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = orderitem.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	return items
}

// orderPaginationRequest represents a find all orders request.
type orderPaginationRequest struct {
	Status string `json:"status,omitempty"`
	Page   int    `json:"page,omitempty"  validate:"omitempty,gt=0"`
	Limit  int    `json:"limit,omitempty" validate:"omitempty,gt=0"`
}

// Validate validates the pagination request.
func (r *orderPaginationRequest) Validate() error {
	return validator.New().Struct(r)
}

// ToModel converts the request into the service pagination model,
// applying defaults.
func (r *orderPaginationRequest) ToModel() (order.PaginationModel, error) {
	model := order.PaginationModel{
		Page:  r.Page,
		Limit: r.Limit,
	}

	if model.Page == 0 {
		model.Page = defaultPage
	}
	if model.Limit == 0 {
		model.Limit = defaultLimit
	}

	if r.Status != "" {
		status, err := orderstatus.ParseStatus(r.Status)
		if err != nil {
			return order.PaginationModel{}, err
		}
		model.Status = &status
	}

	return model, nil
}

// findOneOrderRequest represents a find one order request.
type findOneOrderRequest struct {
	ID string `json:"id" validate:"required"`
}

// Validate validates the find one order request.
func (r *findOneOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

// changeOrderStatusRequest represents a change order status request.
type changeOrderStatusRequest struct {
	ID     string `json:"id"     validate:"required"`
	Status string `json:"status" validate:"required"`
}

// Validate validates the change order status request.
func (r *changeOrderStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// validatable is a request that can validate itself after decoding.
type validatable interface {
	Validate() error
}

// decodeRequest decodes a JSON payload strictly: unknown fields are
// rejected, then declarative validation runs. Every failure surfaces as a
// structured 400 before the service layer is reached.
func decodeRequest(body []byte, req validatable) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(req); err != nil {
		return rpcerror.New(http.StatusBadRequest, err.Error())
	}

	if err := req.Validate(); err != nil {
		return rpcerror.New(http.StatusBadRequest, err.Error())
	}

	return nil
}
