package changestatus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderstatus"
	"github.com/microshop/orders/pkg/rpcerror"
)

type service interface {
	ChangeStatus(ctx context.Context, id string, status orderstatus.Status) (*order.Order, error)
}

// changeStatusRequest represents a change order status request body.
type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Validate validates the change status request.
func (r *changeStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// ChangeStatus handles the change order status request.
func ChangeStatus(w http.ResponseWriter, r *http.Request, service service) {
	id := chi.URLParam(r, "id")

	req := changeStatusRequest{}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		rpcerror.WriteHTTP(w, rpcerror.New(http.StatusBadRequest, err.Error()))
		slog.Error("Error decoding change status request", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		rpcerror.WriteHTTP(w, rpcerror.New(http.StatusBadRequest, err.Error()))
		slog.Error("Error validating change status request", "error", err)

		return
	}

	status, err := orderstatus.ParseStatus(req.Status)
	if err != nil {
		rpcerror.WriteHTTP(w, rpcerror.New(http.StatusBadRequest, err.Error()))
		slog.Error("Error parsing status", "error", err, "status", req.Status)

		return
	}

	updated, err := service.ChangeStatus(r.Context(), id, status)
	if err != nil {
		rpcerror.WriteHTTP(w, err)
		slog.Error("Error changing order status", "error", err, "order_id", id)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		slog.Error("Error sending response for change status", "error", err)
	}
}
