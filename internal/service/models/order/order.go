package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quickserve/pos-order/internal/service/models/currency"
	"github.com/quickserve/pos-order/internal/service/models/orderitem"
)

// Type is the service type of an order.
type Type string

const (
	TypeDineIn   Type = "dine_in"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
)

func (t Type) String() string {
	return string(t)
}

func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeDineIn, TypeTakeaway, TypeDelivery:
		return Type(s), true
	default:
		return "", false
	}
}

// Status is the lifecycle status of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPreparing Status = "preparing"
	StatusCooking   Status = "cooking"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the order can never transition again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusDraft, StatusPreparing, StatusCooking, StatusReady, StatusCompleted, StatusCancelled:
		return Status(s), true
	default:
		return "", false
	}
}

// Order is the aggregate root: the order row plus its line items.
type Order struct {
	ID                 int64                 `json:"id"`
	OrderCode          string                `json:"orderCode"`
	OrderType          Type                  `json:"orderType"`
	TableID            *int64                `json:"tableId,omitempty"`
	Note               string                `json:"note"`
	TotalPriceCents    int64                 `json:"totalPriceCents"`
	TotalPriceCurrency currency.Currency     `json:"totalPriceCurrency"`
	Status             Status                `json:"status"`
	IsPriority         bool                  `json:"isPriority"`
	Version            int64                 `json:"-"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	CompletedAt        *time.Time            `json:"completedAt,omitempty"`
	CanceledAt         *time.Time            `json:"canceledAt,omitempty"`
	OrderItems         []orderitem.OrderItem `json:"orderItems"`
}

// NewOrderCode generates a human-readable unique order code.
func NewOrderCode(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])

	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// TotalFromItems re-derives the order total from the full item set,
// skipping cancelled and rejected items. Totals are always recomputed from
// scratch rather than adjusted incrementally so concurrent partial updates
// cannot introduce drift.
func TotalFromItems(items []orderitem.OrderItem) int64 {
	var total int64
	for i := range items {
		if items[i].Status.CountsTowardTotal() {
			total += items[i].LineTotalCents()
		}
	}

	return total
}

// RecalculateTotal overwrites the stored total from the given item set.
func (o *Order) RecalculateTotal(items []orderitem.OrderItem) {
	o.TotalPriceCents = TotalFromItems(items)
}

// DeriveStatusFromItems returns the order status implied by its active
// items while the order is in the kitchen: the order tracks its
// least-advanced item. Draft and terminal orders are never re-derived.
func (o *Order) DeriveStatusFromItems(items []orderitem.OrderItem) Status {
	if o.Status == StatusDraft || o.Status.IsTerminal() {
		return o.Status
	}

	anyActive := false
	derived := StatusReady
	for i := range items {
		switch items[i].Status {
		case orderitem.StatusPreparing:
			return StatusPreparing
		case orderitem.StatusCooking:
			anyActive = true
			derived = StatusCooking
		case orderitem.StatusReady:
			anyActive = true
		}
	}

	if !anyActive {
		return o.Status
	}

	return derived
}

// CanComplete reports whether every item is in a state acceptable for
// completion: ready, cancelled or rejected.
func (o *Order) CanComplete() bool {
	for i := range o.OrderItems {
		switch o.OrderItems[i].Status {
		case orderitem.StatusPreparing, orderitem.StatusCooking:
			return false
		}
	}

	return true
}
