package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/quickserve/pos-order/internal/apperr"
	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/service/services/ordersvc"
	"github.com/quickserve/pos-order/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	CreateDraftOrder(ctx context.Context, model ordersvc.CreateDraftOrderModel) (order.Order, error)
}

type request struct {
	OrderType  string `json:"orderType" validate:"required,oneof=dine_in takeaway delivery"`
	TableID    *int64 `json:"tableId" validate:"omitempty,gt=0"`
	Note       string `json:"note" validate:"max=500"`
	IsPriority bool   `json:"isPriority"`
}

var validate = validator.New()

// CreateDraftOrder handles the create draft order request.
func CreateDraftOrder(w http.ResponseWriter, r *http.Request, svc service) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("failed to decode request body"))
		slog.Error("Error decoding request body for create draft order", "error", err)

		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, apperr.Validation(err.Error()))

		return
	}

	orderType, _ := order.ParseType(req.OrderType)

	created, err := svc.CreateDraftOrder(r.Context(), ordersvc.CreateDraftOrderModel{
		OrderType:  orderType,
		TableID:    req.TableID,
		Note:       req.Note,
		IsPriority: req.IsPriority,
	})
	if err != nil {
		respond.Error(w, err)
		slog.Error("Error creating draft order", "error", err)

		return
	}

	respond.JSON(w, http.StatusCreated, created)
}
