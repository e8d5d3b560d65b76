package order

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quickserve/pos-order/internal/service/models/orderitem"
)

func TestTotalFromItems(t *testing.T) {
	items := []orderitem.OrderItem{
		{Quantity: 2, UnitPriceCents: 50000, Status: orderitem.StatusPreparing},
		{Quantity: 1, UnitPriceCents: 30000, Status: orderitem.StatusPreparing},
	}

	assert.Equal(t, int64(130000), TotalFromItems(items))

	items[0].Status = orderitem.StatusCancelled
	assert.Equal(t, int64(30000), TotalFromItems(items))

	items[1].Status = orderitem.StatusRejected
	assert.Equal(t, int64(0), TotalFromItems(items))
}

func TestTotalFromItems_IncludesOptionPrices(t *testing.T) {
	items := []orderitem.OrderItem{
		{
			Quantity:       2,
			UnitPriceCents: 50000,
			Status:         orderitem.StatusReady,
			Options: []orderitem.OptionGroup{
				{GroupName: "Size", Values: []orderitem.OptionValue{{ValueLabel: "Large", ExtraPriceCents: 10000}}},
			},
		},
	}

	assert.Equal(t, int64(120000), TotalFromItems(items))
}

func TestDeriveStatusFromItems(t *testing.T) {
	o := &Order{Status: StatusPreparing}

	items := []orderitem.OrderItem{
		{Status: orderitem.StatusCooking},
		{Status: orderitem.StatusPreparing},
	}
	assert.Equal(t, StatusPreparing, o.DeriveStatusFromItems(items))

	items[1].Status = orderitem.StatusCooking
	assert.Equal(t, StatusCooking, o.DeriveStatusFromItems(items))

	items[0].Status = orderitem.StatusReady
	items[1].Status = orderitem.StatusReady
	assert.Equal(t, StatusReady, o.DeriveStatusFromItems(items))

	// Cancelled items do not drag the order status.
	items[1].Status = orderitem.StatusCancelled
	assert.Equal(t, StatusReady, o.DeriveStatusFromItems(items))
}

func TestDeriveStatusFromItems_DraftAndTerminalUnchanged(t *testing.T) {
	items := []orderitem.OrderItem{{Status: orderitem.StatusCooking}}

	draft := &Order{Status: StatusDraft}
	assert.Equal(t, StatusDraft, draft.DeriveStatusFromItems(items))

	done := &Order{Status: StatusCompleted}
	assert.Equal(t, StatusCompleted, done.DeriveStatusFromItems(items))
}

func TestCanComplete(t *testing.T) {
	o := &Order{OrderItems: []orderitem.OrderItem{
		{Status: orderitem.StatusReady},
		{Status: orderitem.StatusCooking},
	}}
	assert.False(t, o.CanComplete())

	o.OrderItems[1].Status = orderitem.StatusReady
	assert.True(t, o.CanComplete())

	o.OrderItems[1].Status = orderitem.StatusCancelled
	assert.True(t, o.CanComplete())

	o.OrderItems[1].Status = orderitem.StatusRejected
	assert.True(t, o.CanComplete())
}

func TestNewOrderCode(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	code := NewOrderCode(now)
	assert.True(t, strings.HasPrefix(code, "ORD-20260815-"))

	other := NewOrderCode(now)
	assert.NotEqual(t, code, other)
}

func TestParseTypeAndStatus(t *testing.T) {
	_, ok := ParseType("dine_in")
	assert.True(t, ok)

	_, ok = ParseType("room_service")
	assert.False(t, ok)

	_, ok = ParseStatus("preparing")
	assert.True(t, ok)

	_, ok = ParseStatus("unknown")
	assert.False(t, ok)
}
