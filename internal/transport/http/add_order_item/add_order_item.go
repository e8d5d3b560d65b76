package addorderitem

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
	"github.com/quickserve/pos-order/internal/service/services/ordersvc"
	"github.com/quickserve/pos-order/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	AddOrderItem(ctx context.Context, model ordersvc.AddOrderItemModel) (order.Order, error)
}

type request struct {
	MenuItemID     int64   `json:"menuItemId" validate:"required,gt=0"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	Note           string  `json:"note" validate:"max=500"`
	OptionValueIDs []int64 `json:"optionValueIds" validate:"dive,gt=0"`
}

var validate = validator.New()

// AddOrderItem handles the add order item request.
func AddOrderItem(w http.ResponseWriter, r *http.Request, svc service) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		respond.Error(w, apperr.Validation("orderId must be a positive integer"))

		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("failed to decode request body"))
		slog.Error("Error decoding request body for add order item", "error", err)

		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, apperr.Validation(err.Error()))

		return
	}

	updated, err := svc.AddOrderItem(r.Context(), ordersvc.AddOrderItemModel{
		OrderID:                orderID,
		MenuItemID:             req.MenuItemID,
		Quantity:               req.Quantity,
		Note:                   req.Note,
		SelectedOptionValueIDs: req.OptionValueIDs,
	})
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error adding order item", "order_id", orderID, "error", err)

		return
	}

	respond.JSON(w, http.StatusOK, updated)
}
