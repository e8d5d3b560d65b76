package updateitemstatus

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
	"github.com/quickserve/pos-order/internal/service/models/orderitem"
	"github.com/quickserve/pos-order/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	UpdateOrderItemStatus(ctx context.Context, orderItemID int64, newStatus orderitem.Status) (order.Order, error)
}

type request struct {
	Status string `json:"status" validate:"required,oneof=cooking ready rejected cancelled"`
}

var validate = validator.New()

// UpdateItemStatus handles the kitchen status progression for one item.
func UpdateItemStatus(w http.ResponseWriter, r *http.Request, svc service) {
	orderItemID, err := strconv.ParseInt(chi.URLParam(r, "orderItemId"), 10, 64)
	if err != nil || orderItemID <= 0 {
		respond.Error(w, apperr.Validation("orderItemId must be a positive integer"))

		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("failed to decode request body"))
		slog.Error("Error decoding request body for update item status", "error", err)

		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, apperr.Validation(err.Error()))

		return
	}

	status, _ := orderitem.ParseStatus(req.Status)

	updated, err := svc.UpdateOrderItemStatus(r.Context(), orderItemID, status)
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error updating order item status", "order_item_id", orderItemID, "error", err)

		return
	}

	respond.JSON(w, http.StatusOK, updated)
}
