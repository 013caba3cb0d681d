package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderitem"
	"github.com/microshop/orders/pkg/rpcerror"
)

// service is an interface for the service layer.
type service interface {
	Create(ctx context.Context, items []orderitem.OrderItem) (*order.Order, error)
}

// itemInCreateOrderRequest represents an item in a create order request.
// Price is advisory: the service resolves the real price from the products
// service and the client value is discarded.
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

// toModel converts the request into service layer order items.
func (r *createOrderRequest) toModel() []orderitem.OrderItem {
	items := make([]orderitem.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = orderitem.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	return items
}

// CreateOrder handles the create order request.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	req := createOrderRequest{}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		rpcerror.WriteHTTP(w, rpcerror.New(http.StatusBadRequest, err.Error()))
		slog.Error("Error decoding request body for create order", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		rpcerror.WriteHTTP(w, rpcerror.New(http.StatusBadRequest, err.Error()))
		slog.Error("Error validating request body for create order", "error", err)

		return
	}

	created, err := service.Create(r.Context(), req.toModel())
	if err != nil {
		rpcerror.WriteHTTP(w, err)
		slog.Error("Error creating order", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		slog.Error("Error sending response for create order", "error", err)
	}
}
