package completeorder

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quickserve/pos-order/internal/apperr"
	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	CompleteOrder(ctx context.Context, orderID int64) (order.Order, error)
}

// CompleteOrder handles the complete order request.
func CompleteOrder(w http.ResponseWriter, r *http.Request, svc service) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		respond.Error(w, apperr.Validation("orderId must be a positive integer"))

		return
	}

	completed, err := svc.CompleteOrder(r.Context(), orderID)
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error completing order", "order_id", orderID, "error", err)

		return
	}

	respond.JSON(w, http.StatusOK, completed)
}
