package imenuitemrepo

import (
	"context"
	"errors"

	"github.com/quickserve/pos-order/internal/service/models/menuitem"
)

// ErrNotFound is returned when no menu item matches the given id.
var ErrNotFound = errors.New("menu item not found")

// IMenuItemRepository is the engine's read-only view of the menu catalog.
type IMenuItemRepository interface {
	GetByID(ctx context.Context, id int64) (menuitem.MenuItem, error)
}
