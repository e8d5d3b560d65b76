package updatedraftorder

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
	UpdateDraftOrder(ctx context.Context, model ordersvc.UpdateDraftOrderModel) (order.Order, error)
}

type requestItem struct {
	MenuItemID     int64   `json:"menuItemId" validate:"required,gt=0"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	Note           string  `json:"note" validate:"max=500"`
	OptionValueIDs []int64 `json:"optionValueIds" validate:"dive,gt=0"`
}

type request struct {
	OrderType  string        `json:"orderType" validate:"required,oneof=dine_in takeaway delivery"`
	TableID    *int64        `json:"tableId" validate:"omitempty,gt=0"`
	Note       string        `json:"note" validate:"max=500"`
	IsPriority bool          `json:"isPriority"`
	Items      []requestItem `json:"items" validate:"dive"`
}

var validate = validator.New()

// UpdateDraftOrder handles the full replace of a draft order.
func UpdateDraftOrder(w http.ResponseWriter, r *http.Request, svc service) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		respond.Error(w, apperr.Validation("orderId must be a positive integer"))

		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("failed to decode request body"))
		slog.Error("Error decoding request body for update draft order", "error", err)

		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, apperr.Validation(err.Error()))

		return
	}

	orderType, _ := order.ParseType(req.OrderType)

	items := make([]ordersvc.DraftItemModel, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ordersvc.DraftItemModel{
			MenuItemID:             item.MenuItemID,
			Quantity:               item.Quantity,
			Note:                   item.Note,
			SelectedOptionValueIDs: item.OptionValueIDs,
		})
	}

	updated, err := svc.UpdateDraftOrder(r.Context(), ordersvc.UpdateDraftOrderModel{
		OrderID:    orderID,
		OrderType:  orderType,
		TableID:    req.TableID,
		Note:       req.Note,
		IsPriority: req.IsPriority,
		Items:      items,
	})
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error updating draft order", "order_id", orderID, "error", err)

		return
	}

	respond.JSON(w, http.StatusOK, updated)
}
