package iorderrepo

import (
	"context"
	"errors"

	"github.com/quickserve/pos-order/internal/service/models/order"
)

// ErrNotFound is returned when no order matches the given id.
var ErrNotFound = errors.New("order not found")

// ErrVersionConflict is returned when an update loses an optimistic-lock
// race: another writer committed against the same order version first.
var ErrVersionConflict = errors.New("order version conflict")

// IOrderRepository is an interface for the order postgres repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	GetByID(ctx context.Context, id int64) (order.Order, error)
	// Update persists the order row guarded by its version column and
	// bumps the version. Returns ErrVersionConflict on a stale write.
	Update(ctx context.Context, o *order.Order) error
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}
