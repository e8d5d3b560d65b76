package iorderitemrepo

import (
	"context"
	"errors"

	"github.com/quickserve/pos-order/internal/service/models/orderitem"
)

// ErrNotFound is returned when no order item matches the given id.
var ErrNotFound = errors.New("order item not found")

// IOrderItemRepository is an interface for the order item postgres repository.
type IOrderItemRepository interface {
	// BulkInsert inserts items with their option snapshots and returns
	// them with generated ids.
	BulkInsert(ctx context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	GetByID(ctx context.Context, id int64) (orderitem.OrderItem, error)
	Update(ctx context.Context, item *orderitem.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]orderitem.OrderItem, error)
	DeleteByOrderID(ctx context.Context, orderID int64) error
}
