package listorders

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)
}

// ListOrders handles the list orders request.
func ListOrders(w http.ResponseWriter, r *http.Request, svc service) {
	query := r.URL.Query()

	filter := order.QueryOrdersModel{
		Status: query.Get("status"),
		Type:   query.Get("type"),
		Limit:  parseIntOrDefault(query.Get("limit"), 50),
		Offset: parseIntOrDefault(query.Get("offset"), 0),
	}

	orders, err := svc.ListOrders(r.Context(), filter)
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error listing orders", "error", err)

		return
	}

	respond.JSON(w, http.StatusOK, orders)
}

func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}

	val, err := strconv.Atoi(s)
	if err != nil || val < 0 {
		return def
	}

	return val
}
