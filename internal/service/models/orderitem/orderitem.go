package orderitem

import (
	"time"

	"github.com/quickserve/pos-order/internal/service/models/currency"
)

// Status is the lifecycle status of a single order item.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusCooking   Status = "cooking"
	StatusReady     Status = "ready"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the item can never be mutated again.
// Ready is acceptable for order completion but is not terminal: a ready
// item can still be cancelled while the order is open.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusRejected
}

// CountsTowardTotal reports whether the item participates in the order total.
func (s Status) CountsTowardTotal() bool {
	return !s.IsTerminal()
}

// CanTransitionTo validates the kitchen progression for an item.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}

	switch next {
	case StatusCooking:
		return s == StatusPreparing
	case StatusReady:
		return s == StatusCooking
	case StatusRejected:
		return s == StatusPreparing || s == StatusCooking
	case StatusCancelled:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPreparing, StatusCooking, StatusReady, StatusCancelled, StatusRejected:
		return Status(s), true
	default:
		return "", false
	}
}

// OptionValue is an immutable snapshot of a selected option value, copied
// from the catalog when the item is added.
type OptionValue struct {
	ID              int64  `json:"id"`
	ValueLabel      string `json:"valueLabel"`
	ExtraPriceCents int64  `json:"extraPriceCents"`
}

// OptionGroup is an immutable snapshot of a selected option group.
type OptionGroup struct {
	ID        int64         `json:"id"`
	GroupName string        `json:"groupName"`
	Values    []OptionValue `json:"values"`
}

// OrderItem represents a line item within an order. Menu item code, name,
// station and unit price are denormalized snapshots taken at add-time so
// historical orders are immune to later catalog edits.
type OrderItem struct {
	ID                int64             `json:"id"`
	OrderID           int64             `json:"orderId"`
	MenuItemID        int64             `json:"menuItemId"`
	ItemCode          string            `json:"itemCode"`
	ItemName          string            `json:"itemName"`
	Station           string            `json:"station"`
	UnitPriceCents    int64             `json:"unitPriceCents"`
	UnitPriceCurrency currency.Currency `json:"unitPriceCurrency"`
	Quantity          int               `json:"quantity"`
	Note              string            `json:"note"`
	Status            Status            `json:"status"`
	Options           []OptionGroup     `json:"options,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	CanceledAt        *time.Time        `json:"canceledAt,omitempty"`
}

// LineTotalCents is quantity times the unit price snapshot plus the extra
// price of every selected option value.
func (i *OrderItem) LineTotalCents() int64 {
	unit := i.UnitPriceCents
	for _, group := range i.Options {
		for _, value := range group.Values {
			unit += value.ExtraPriceCents
		}
	}

	return unit * int64(i.Quantity)
}

// Cancel marks the item cancelled and stamps the cancellation time.
func (i *OrderItem) Cancel(now time.Time) {
	i.Status = StatusCancelled
	i.CanceledAt = &now
	i.UpdatedAt = now
}
