package submitorder

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
	SubmitOrderToKitchen(ctx context.Context, orderID int64) (order.Order, error)
}

// SubmitOrder handles the submit-to-kitchen request.
func SubmitOrder(w http.ResponseWriter, r *http.Request, svc service) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		respond.Error(w, apperr.Validation("orderId must be a positive integer"))

		return
	}

	submitted, err := svc.SubmitOrderToKitchen(r.Context(), orderID)
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error submitting order to kitchen", "order_id", orderID, "error", err)

		return
	}

	respond.JSON(w, http.StatusOK, submitted)
}
