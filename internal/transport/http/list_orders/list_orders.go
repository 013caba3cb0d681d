package listorders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/microshop/orders/internal/service/models/order"
	"github.com/microshop/orders/internal/service/models/orderstatus"
	"github.com/microshop/orders/pkg/rpcerror"
)

type service interface {
	List(ctx context.Context, pagination order.PaginationModel) (*order.Page, error)
}

type listOrdersRequest struct {
	Status string `schema:"status,omitempty"`
	Page   int    `schema:"page,omitempty"`
	Limit  int    `schema:"limit,omitempty"`
}

func (q *listOrdersRequest) toModel() (order.PaginationModel, error) {
	model := order.PaginationModel{
		Page:  q.Page,
		Limit: q.Limit,
	}

	if model.Page <= 0 {
		model.Page = 1
	}
	if model.Limit <= 0 {
		model.Limit = 10
	}

	if q.Status != "" {
		status, err := orderstatus.ParseStatus(q.Status)
		if err != nil {
			return order.PaginationModel{}, err
		}
		model.Status = &status
	}

	return model, nil
}

// ListOrders handles the list orders request.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	decoder := schema.NewDecoder()
	query := &listOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		rpcerror.WriteHTTP(w, rpcerror.New(http.StatusBadRequest, err.Error()))
		slog.Error("Error decoding list orders query", "error", err)

		return
	}

	pagination, err := query.toModel()
	if err != nil {
		rpcerror.WriteHTTP(w, rpcerror.New(http.StatusBadRequest, err.Error()))
		slog.Error("Error parsing list orders query", "error", err)

		return
	}

	page, err := service.List(r.Context(), pagination)
	if err != nil {
		rpcerror.WriteHTTP(w, err)
		slog.Error("Error listing orders", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		slog.Error("Error sending response for list orders", "error", err)
	}
}
