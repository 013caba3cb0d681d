package getorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/pkg/rpcerror"
)

type service interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

// GetOrder handles the get order by id request.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	id := chi.URLParam(r, "id")

	found, err := service.GetByID(r.Context(), id)
	if err != nil {
		rpcerror.WriteHTTP(w, err)
		slog.Error("Error getting order", "error", err, "order_id", id)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(found); err != nil {
		slog.Error("Error sending response for get order", "error", err)
	}
}
