package cancelorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quickserve/pos-order/internal/apperr"
	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	CancelOrder(ctx context.Context, orderID int64, reason string) (order.Order, error)
}

type request struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

var validate = validator.New()

// CancelOrder handles the cancel order request.
func CancelOrder(w http.ResponseWriter, r *http.Request, svc service) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		respond.Error(w, apperr.Validation("orderId must be a positive integer"))

		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("failed to decode request body"))
		slog.Error("Error decoding request body for cancel order", "error", err)

		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, apperr.Validation(err.Error()))

		return
	}

	cancelled, err := svc.CancelOrder(r.Context(), orderID, req.Reason)
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error cancelling order", "order_id", orderID, "error", err)

		return
	}

	respond.JSON(w, http.StatusOK, cancelled)
}
