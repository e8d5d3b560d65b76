package ordersvc

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickserve/pos-order/internal/apperr"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iauditrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/imenuitemrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderitemrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/ioutboxrepo"
	"github.com/quickserve/pos-order/internal/service/models/auditlog"
	"github.com/quickserve/pos-order/internal/service/models/currency"
	"github.com/quickserve/pos-order/internal/service/models/identity"
	"github.com/quickserve/pos-order/internal/service/models/menuitem"
	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/service/models/orderitem"
	"github.com/quickserve/pos-order/internal/service/models/outbox"
)

// fakeStore backs the in-memory repositories. All unit-of-work instances
// share one store so state carries across service calls.
type fakeStore struct {
	orders      map[int64]order.Order
	items       map[int64]orderitem.OrderItem
	menu        map[int64]menuitem.MenuItem
	audits      []auditlog.Entry
	outbox      []outbox.Message
	nextOrderID int64
	nextItemID  int64

	// beforeOrderUpdate, when set, runs once right before an order row
	// update to simulate a concurrent writer.
	beforeOrderUpdate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders: make(map[int64]order.Order),
		items:  make(map[int64]orderitem.OrderItem),
		menu:   make(map[int64]menuitem.MenuItem),
	}
}

type fakeOrderRepo struct{ s *fakeStore }

func (r fakeOrderRepo) Insert(_ context.Context, o order.Order) (order.Order, error) {
	r.s.nextOrderID++
	o.ID = r.s.nextOrderID
	o.OrderItems = nil
	r.s.orders[o.ID] = o

	return o, nil
}

func (r fakeOrderRepo) GetByID(_ context.Context, id int64) (order.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return order.Order{}, iorderrepo.ErrNotFound
	}
	o.OrderItems = nil

	return o, nil
}

func (r fakeOrderRepo) Update(_ context.Context, o *order.Order) error {
	if r.s.beforeOrderUpdate != nil {
		hook := r.s.beforeOrderUpdate
		r.s.beforeOrderUpdate = nil
		hook()
	}

	stored, ok := r.s.orders[o.ID]
	if !ok || stored.Version != o.Version {
		return iorderrepo.ErrVersionConflict
	}

	o.Version++
	cp := *o
	cp.OrderItems = nil
	r.s.orders[o.ID] = cp

	return nil
}

func (r fakeOrderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	ids := make([]int64, 0, len(r.s.orders))
	for id := range r.s.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []order.Order
	for _, id := range ids {
		o := r.s.orders[id]
		if filter.Status != "" && o.Status.String() != filter.Status {
			continue
		}
		if filter.Type != "" && o.OrderType.String() != filter.Type {
			continue
		}
		out = append(out, o)
	}

	return out, nil
}

type fakeOrderItemRepo struct{ s *fakeStore }

func (r fakeOrderItemRepo) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	out := make([]orderitem.OrderItem, 0, len(items))
	for _, item := range items {
		r.s.nextItemID++
		item.ID = r.s.nextItemID
		r.s.items[item.ID] = item
		out = append(out, item)
	}

	return out, nil
}

func (r fakeOrderItemRepo) GetByID(_ context.Context, id int64) (orderitem.OrderItem, error) {
	item, ok := r.s.items[id]
	if !ok {
		return orderitem.OrderItem{}, iorderitemrepo.ErrNotFound
	}

	return item, nil
}

func (r fakeOrderItemRepo) Update(_ context.Context, item *orderitem.OrderItem) error {
	if _, ok := r.s.items[item.ID]; !ok {
		return iorderitemrepo.ErrNotFound
	}
	r.s.items[item.ID] = *item

	return nil
}

func (r fakeOrderItemRepo) ListByOrderID(_ context.Context, orderID int64) ([]orderitem.OrderItem, error) {
	ids := make([]int64, 0, len(r.s.items))
	for id, item := range r.s.items {
		if item.OrderID == orderID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]orderitem.OrderItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.s.items[id])
	}

	return out, nil
}

func (r fakeOrderItemRepo) DeleteByOrderID(_ context.Context, orderID int64) error {
	for id, item := range r.s.items {
		if item.OrderID == orderID {
			delete(r.s.items, id)
		}
	}

	return nil
}

type fakeAuditRepo struct{ s *fakeStore }

func (r fakeAuditRepo) Record(_ context.Context, entry auditlog.Entry) error {
	entry.ID = int64(len(r.s.audits) + 1)
	r.s.audits = append(r.s.audits, entry)

	return nil
}

type fakeMenuItemRepo struct{ s *fakeStore }

func (r fakeMenuItemRepo) GetByID(_ context.Context, id int64) (menuitem.MenuItem, error) {
	m, ok := r.s.menu[id]
	if !ok {
		return menuitem.MenuItem{}, imenuitemrepo.ErrNotFound
	}

	return m, nil
}

type fakeOutboxRepo struct{ s *fakeStore }

func (r fakeOutboxRepo) Insert(_ context.Context, msg outbox.Message) error {
	msg.ID = int64(len(r.s.outbox) + 1)
	r.s.outbox = append(r.s.outbox, msg)

	return nil
}

func (r fakeOutboxRepo) GetPendingMessages(_ context.Context, _ int) ([]outbox.Message, error) {
	return r.s.outbox, nil
}

func (r fakeOutboxRepo) Delete(_ context.Context, _ int64) error { return nil }

func (r fakeOutboxRepo) UpdateRetry(_ context.Context, _ int64, _ int, _ string, _ time.Time) error {
	return nil
}

type fakeUnitOfWork struct {
	s *fakeStore
}

func (u *fakeUnitOfWork) Begin(_ context.Context) error    { return nil }
func (u *fakeUnitOfWork) Commit(_ context.Context) error   { return nil }
func (u *fakeUnitOfWork) Rollback(_ context.Context) error { return nil }

func (u *fakeUnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return fakeOrderRepo{s: u.s}
}

func (u *fakeUnitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return fakeOrderItemRepo{s: u.s}
}

func (u *fakeUnitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return fakeAuditRepo{s: u.s}
}

func (u *fakeUnitOfWork) MenuItemRepository() imenuitemrepo.IMenuItemRepository {
	return fakeMenuItemRepo{s: u.s}
}

func (u *fakeUnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return fakeOutboxRepo{s: u.s}
}

type fakeCacheGateway struct {
	entries map[string][]byte
	removed []string
}

func newFakeCacheGateway() *fakeCacheGateway {
	return &fakeCacheGateway{entries: make(map[string][]byte)}
}

func (c *fakeCacheGateway) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}

	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCacheGateway) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw

	return nil
}

func (c *fakeCacheGateway) Remove(_ context.Context, key string) error {
	delete(c.entries, key)
	c.removed = append(c.removed, key)

	return nil
}

func (c *fakeCacheGateway) RemoveByPrefix(_ context.Context, prefix string) error {
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
	c.removed = append(c.removed, prefix+"*")

	return nil
}

var testClock = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*OrderService, *fakeStore, *fakeCacheGateway) {
	t.Helper()

	store := newFakeStore()
	cache := newFakeCacheGateway()
	svc := MustNewOrderService(
		WithUnitOfWorkFactory(func() unitOfWork { return &fakeUnitOfWork{s: store} }),
		WithCacheGateway(cache),
		WithClock(func() time.Time { return testClock }),
	)

	seedMenu(store)

	return svc, store, cache
}

func seedMenu(store *fakeStore) {
	store.menu[1] = menuitem.MenuItem{
		ID:          1,
		ItemCode:    "PHO-01",
		ItemName:    "Pho Bo",
		Station:     "hot_kitchen",
		PriceCents:  50000,
		Currency:    currency.CurrencyVND,
		IsAvailable: true,
		OptionGroups: []menuitem.OptionGroup{
			{
				ID:        10,
				GroupName: "Size",
				Values: []menuitem.OptionValue{
					{ID: 11, ValueLabel: "Large", ExtraPriceCents: 10000},
					{ID: 12, ValueLabel: "Regular", ExtraPriceCents: 0},
				},
			},
		},
	}
	store.menu[2] = menuitem.MenuItem{
		ID:          2,
		ItemCode:    "SR-02",
		ItemName:    "Spring Rolls",
		Station:     "cold_kitchen",
		PriceCents:  30000,
		Currency:    currency.CurrencyVND,
		IsAvailable: true,
	}
	store.menu[3] = menuitem.MenuItem{
		ID:          3,
		ItemCode:    "SEA-03",
		ItemName:    "Seasonal Special",
		Station:     "hot_kitchen",
		PriceCents:  90000,
		Currency:    currency.CurrencyVND,
		IsAvailable: false,
	}
}

func actorCtx() context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{ActorID: 7, Role: "waiter"})
}

func mustCreateDraft(t *testing.T, svc *OrderService, orderType order.Type, tableID *int64) order.Order {
	t.Helper()

	ord, err := svc.CreateDraftOrder(context.Background(), CreateDraftOrderModel{
		OrderType: orderType,
		TableID:   tableID,
	})
	require.NoError(t, err)

	return ord
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateDraftOrder(t *testing.T) {
	t.Run("dine-in without table is rejected before any write", func(t *testing.T) {
		svc, store, _ := newTestService(t)

		_, err := svc.CreateDraftOrder(context.Background(), CreateDraftOrderModel{
			OrderType: order.TypeDineIn,
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Empty(t, store.orders)
	})

	t.Run("unknown order type is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreateDraftOrder(context.Background(), CreateDraftOrderModel{
			OrderType: order.Type("drive_through"),
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("creates an empty draft without requiring an identity", func(t *testing.T) {
		svc, store, _ := newTestService(t)

		ord := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		assert.Equal(t, order.StatusDraft, ord.Status)
		assert.Equal(t, int64(0), ord.TotalPriceCents)
		assert.Equal(t, currency.CurrencyVND, ord.TotalPriceCurrency)
		assert.Contains(t, ord.OrderCode, "ORD-20260815-")
		// Draft creation is the one unaudited operation.
		assert.Empty(t, store.audits)
	})

	t.Run("dine-in with table succeeds", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		ord := mustCreateDraft(t, svc, order.TypeDineIn, int64Ptr(12))

		require.NotNil(t, ord.TableID)
		assert.Equal(t, int64(12), *ord.TableID)
	})
}

func TestAddOrderItem(t *testing.T) {
	t.Run("snapshots catalog fields and recomputes the total", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		ord, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:    draft.ID,
			MenuItemID: 1,
			Quantity:   2,
		})
		require.NoError(t, err)

		require.Len(t, ord.OrderItems, 1)
		item := ord.OrderItems[0]
		assert.Equal(t, "PHO-01", item.ItemCode)
		assert.Equal(t, "Pho Bo", item.ItemName)
		assert.Equal(t, "hot_kitchen", item.Station)
		assert.Equal(t, int64(50000), item.UnitPriceCents)
		assert.Equal(t, orderitem.StatusPreparing, item.Status)
		assert.Equal(t, int64(100000), ord.TotalPriceCents)

		ord, err = svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:    draft.ID,
			MenuItemID: 2,
			Quantity:   1,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(130000), ord.TotalPriceCents)
	})

	t.Run("selected options add their extra price to the line", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		ord, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:                draft.ID,
			MenuItemID:             1,
			Quantity:               2,
			SelectedOptionValueIDs: []int64{11},
		})
		require.NoError(t, err)

		require.Len(t, ord.OrderItems, 1)
		require.Len(t, ord.OrderItems[0].Options, 1)
		assert.Equal(t, "Size", ord.OrderItems[0].Options[0].GroupName)
		assert.Equal(t, "Large", ord.OrderItems[0].Options[0].Values[0].ValueLabel)
		// (50000 + 10000) * 2
		assert.Equal(t, int64(120000), ord.TotalPriceCents)
	})

	t.Run("option from another menu item is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:                draft.ID,
			MenuItemID:             2,
			Quantity:               1,
			SelectedOptionValueIDs: []int64{11},
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unavailable menu item is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:    draft.ID,
			MenuItemID: 3,
			Quantity:   1,
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unknown menu item is not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:    draft.ID,
			MenuItemID: 999,
			Quantity:   1,
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("non-positive quantity is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:    draft.ID,
			MenuItemID: 1,
			Quantity:   0,
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		_, err := svc.AddOrderItem(context.Background(), AddOrderItemModel{
			OrderID:    draft.ID,
			MenuItemID: 1,
			Quantity:   1,
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID:    42,
			MenuItemID: 1,
			Quantity:   1,
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestSubmitOrderToKitchen(t *testing.T) {
	t.Run("draft moves to preparing with audit and event", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
		})
		require.NoError(t, err)

		ord, err := svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
		require.NoError(t, err)

		assert.Equal(t, order.StatusPreparing, ord.Status)

		require.Len(t, store.audits, 2)
		submitEntry := store.audits[1]
		assert.Equal(t, auditlog.ActionSubmitOrder, submitEntry.Action)
		assert.Equal(t, draft.ID, submitEntry.TargetID)
		assert.Equal(t, int64(7), submitEntry.ActorID)

		require.Len(t, store.outbox, 1)
		assert.Equal(t, "order.submitted", store.outbox[0].RoutingKey)
		assert.Equal(t, "pos.orders", store.outbox[0].ExchangeName)
	})

	t.Run("submitting a non-draft order conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		_, err := svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
		require.NoError(t, err)

		_, err = svc.SubmitOrderToKitchen(actorCtx(), draft.ID)

		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		_, err := svc.SubmitOrderToKitchen(context.Background(), draft.ID)

		require.Error(t, err)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})
}

func TestUpdateDraftOrder(t *testing.T) {
	t.Run("fully replaces items and metadata", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 3,
		})
		require.NoError(t, err)

		ord, err := svc.UpdateDraftOrder(actorCtx(), UpdateDraftOrderModel{
			OrderID:   draft.ID,
			OrderType: order.TypeDineIn,
			TableID:   int64Ptr(4),
			Note:      "window seat",
			Items: []DraftItemModel{
				{MenuItemID: 2, Quantity: 2},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, order.TypeDineIn, ord.OrderType)
		assert.Equal(t, "window seat", ord.Note)
		require.Len(t, ord.OrderItems, 1)
		assert.Equal(t, "SR-02", ord.OrderItems[0].ItemCode)
		assert.Equal(t, int64(60000), ord.TotalPriceCents)

		// The old line is gone from storage, not just from the response.
		assert.Len(t, store.items, 1)
	})

	t.Run("non-draft orders cannot be replaced", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		_, err := svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
		require.NoError(t, err)

		_, err = svc.UpdateDraftOrder(actorCtx(), UpdateDraftOrderModel{
			OrderID:   draft.ID,
			OrderType: order.TypeTakeaway,
		})

		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}

func TestUpdateOrderItemStatus(t *testing.T) {
	submitWithItems := func(t *testing.T, svc *OrderService) order.Order {
		t.Helper()

		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
		})
		require.NoError(t, err)
		_, err = svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 2, Quantity: 1,
		})
		require.NoError(t, err)
		ord, err := svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
		require.NoError(t, err)

		return ord
	}

	t.Run("kitchen progression advances the item and derives the order status", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ord := submitWithItems(t, svc)
		first := ord.OrderItems[0].ID
		second := ord.OrderItems[1].ID

		// One item cooking, one still preparing: the order tracks the
		// least-advanced item.
		updated, err := svc.UpdateOrderItemStatus(actorCtx(), first, orderitem.StatusCooking)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPreparing, updated.Status)

		updated, err = svc.UpdateOrderItemStatus(actorCtx(), second, orderitem.StatusCooking)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCooking, updated.Status)

		_, err = svc.UpdateOrderItemStatus(actorCtx(), first, orderitem.StatusReady)
		require.NoError(t, err)
		updated, err = svc.UpdateOrderItemStatus(actorCtx(), second, orderitem.StatusReady)
		require.NoError(t, err)
		assert.Equal(t, order.StatusReady, updated.Status)
	})

	t.Run("skipping cooking is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ord := submitWithItems(t, svc)

		_, err := svc.UpdateOrderItemStatus(actorCtx(), ord.OrderItems[0].ID, orderitem.StatusReady)

		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("terminal items are immutable", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ord := submitWithItems(t, svc)
		itemID := ord.OrderItems[0].ID

		_, err := svc.CancelOrderItem(actorCtx(), itemID, "customer changed mind")
		require.NoError(t, err)

		_, err = svc.UpdateOrderItemStatus(actorCtx(), itemID, orderitem.StatusCooking)

		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("rejecting an item removes it from the total", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ord := submitWithItems(t, svc)
		require.Equal(t, int64(80000), ord.TotalPriceCents)

		updated, err := svc.UpdateOrderItemStatus(actorCtx(), ord.OrderItems[0].ID, orderitem.StatusRejected)
		require.NoError(t, err)

		assert.Equal(t, int64(30000), updated.TotalPriceCents)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ord := submitWithItems(t, svc)

		_, err := svc.UpdateOrderItemStatus(actorCtx(), ord.OrderItems[0].ID, orderitem.Status("plated"))

		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestCancelOrderItem(t *testing.T) {
	t.Run("cancelling a line excludes it from the total", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		ord, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 2,
		})
		require.NoError(t, err)
		ord, err = svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 2, Quantity: 1,
		})
		require.NoError(t, err)
		require.Equal(t, int64(130000), ord.TotalPriceCents)

		cancelled, err := svc.CancelOrderItem(actorCtx(), ord.OrderItems[0].ID, "out of stock")
		require.NoError(t, err)

		assert.Equal(t, int64(30000), cancelled.TotalPriceCents)
		assert.Equal(t, orderitem.StatusCancelled, cancelled.OrderItems[0].Status)
		require.NotNil(t, cancelled.OrderItems[0].CanceledAt)
		assert.Equal(t, testClock, *cancelled.OrderItems[0].CanceledAt)

		// Exactly one cancel entry, carrying the reason and actor.
		var cancelEntries []auditlog.Entry
		for _, entry := range store.audits {
			if entry.Action == auditlog.ActionCancelItem {
				cancelEntries = append(cancelEntries, entry)
			}
		}
		require.Len(t, cancelEntries, 1)
		assert.Equal(t, draft.ID, cancelEntries[0].TargetID)
		assert.Equal(t, int64(7), cancelEntries[0].ActorID)
		assert.Equal(t, "out of stock", cancelEntries[0].Reason)
	})

	t.Run("already cancelled item conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		ord, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
		})
		require.NoError(t, err)
		itemID := ord.OrderItems[0].ID

		_, err = svc.CancelOrderItem(actorCtx(), itemID, "first")
		require.NoError(t, err)

		_, err = svc.CancelOrderItem(actorCtx(), itemID, "second")
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("unknown item is not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CancelOrderItem(actorCtx(), 404, "whatever")

		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestCancelOrder(t *testing.T) {
	t.Run("cascades to every non-terminal item", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
		})
		require.NoError(t, err)
		ord, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 2, Quantity: 1,
		})
		require.NoError(t, err)

		cancelled, err := svc.CancelOrder(actorCtx(), ord.ID, "customer left")
		require.NoError(t, err)

		assert.Equal(t, order.StatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CanceledAt)
		assert.Equal(t, int64(0), cancelled.TotalPriceCents)
		for _, item := range cancelled.OrderItems {
			assert.Equal(t, orderitem.StatusCancelled, item.Status)
			assert.NotNil(t, item.CanceledAt)
		}

		require.Len(t, store.outbox, 1)
		assert.Equal(t, "order.cancelled", store.outbox[0].RoutingKey)
	})

	t.Run("completed orders cannot be cancelled and stay unchanged", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ord := readyOrder(t, svc)

		completed, err := svc.CompleteOrder(actorCtx(), ord.ID)
		require.NoError(t, err)

		_, err = svc.CancelOrder(actorCtx(), ord.ID, "too late")

		require.ErrorIs(t, err, ErrInvalidStatusForCancel)
		stored := store.orders[ord.ID]
		assert.Equal(t, order.StatusCompleted, stored.Status)
		assert.Equal(t, completed.TotalPriceCents, stored.TotalPriceCents)
		assert.Nil(t, stored.CanceledAt)
	})
}

// readyOrder builds a submitted order whose single item is ready.
func readyOrder(t *testing.T, svc *OrderService) order.Order {
	t.Helper()

	draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
	added, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
		OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
	})
	require.NoError(t, err)
	_, err = svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
	require.NoError(t, err)
	itemID := added.OrderItems[0].ID
	_, err = svc.UpdateOrderItemStatus(actorCtx(), itemID, orderitem.StatusCooking)
	require.NoError(t, err)
	ord, err := svc.UpdateOrderItemStatus(actorCtx(), itemID, orderitem.StatusReady)
	require.NoError(t, err)

	return ord
}

func TestCompleteOrder(t *testing.T) {
	t.Run("fails while an item is still in the kitchen", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		added, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
		})
		require.NoError(t, err)
		_, err = svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
		require.NoError(t, err)
		_, err = svc.UpdateOrderItemStatus(actorCtx(), added.OrderItems[0].ID, orderitem.StatusCooking)
		require.NoError(t, err)

		_, err = svc.CompleteOrder(actorCtx(), draft.ID)

		require.ErrorIs(t, err, ErrOrderNotReadyForCompletion)
	})

	t.Run("succeeds once every item is ready and stamps completion", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		ord := readyOrder(t, svc)

		completed, err := svc.CompleteOrder(actorCtx(), ord.ID)
		require.NoError(t, err)

		assert.Equal(t, order.StatusCompleted, completed.Status)
		require.NotNil(t, completed.CompletedAt)
		assert.Equal(t, testClock, *completed.CompletedAt)

		require.NotEmpty(t, store.outbox)
		assert.Equal(t, "order.completed", store.outbox[len(store.outbox)-1].RoutingKey)
	})

	t.Run("cancelled and rejected items do not block completion", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		added, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
		})
		require.NoError(t, err)
		added, err = svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 2, Quantity: 1,
		})
		require.NoError(t, err)
		_, err = svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
		require.NoError(t, err)

		first, second := added.OrderItems[0].ID, added.OrderItems[1].ID
		_, err = svc.UpdateOrderItemStatus(actorCtx(), first, orderitem.StatusCooking)
		require.NoError(t, err)
		_, err = svc.UpdateOrderItemStatus(actorCtx(), first, orderitem.StatusReady)
		require.NoError(t, err)
		_, err = svc.CancelOrderItem(actorCtx(), second, "86ed")
		require.NoError(t, err)

		completed, err := svc.CompleteOrder(actorCtx(), draft.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCompleted, completed.Status)
		assert.Equal(t, int64(50000), completed.TotalPriceCents)
	})

	t.Run("double completion conflicts", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ord := readyOrder(t, svc)
		_, err := svc.CompleteOrder(actorCtx(), ord.ID)
		require.NoError(t, err)

		_, err = svc.CompleteOrder(actorCtx(), ord.ID)

		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}

func TestOptimisticLocking(t *testing.T) {
	svc, store, _ := newTestService(t)
	draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

	// A concurrent writer bumps the row version between our load and write.
	store.beforeOrderUpdate = func() {
		o := store.orders[draft.ID]
		o.Version++
		store.orders[draft.ID] = o
	}

	_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
		OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
	})

	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The next attempt sees the fresh version and succeeds.
	ord, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
		OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ord.OrderItems)
}

func TestAuditTrailCompleteness(t *testing.T) {
	svc, store, _ := newTestService(t)
	draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
	added, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
		OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
	})
	require.NoError(t, err)
	_, err = svc.SubmitOrderToKitchen(actorCtx(), draft.ID)
	require.NoError(t, err)
	_, err = svc.UpdateOrderItemStatus(actorCtx(), added.OrderItems[0].ID, orderitem.StatusCooking)
	require.NoError(t, err)
	_, err = svc.CancelOrder(actorCtx(), draft.ID, "fire drill")
	require.NoError(t, err)

	// One entry per mutation, in order, none for draft creation.
	require.Len(t, store.audits, 4)
	assert.Equal(t, auditlog.ActionAddItem, store.audits[0].Action)
	assert.Equal(t, auditlog.ActionSubmitOrder, store.audits[1].Action)
	assert.Equal(t, auditlog.ActionUpdateItemStatus, store.audits[2].Action)
	assert.Equal(t, auditlog.ActionCancelOrder, store.audits[3].Action)
	for _, entry := range store.audits {
		assert.Equal(t, draft.ID, entry.TargetID)
		assert.Equal(t, int64(7), entry.ActorID)
		assert.Equal(t, testClock, entry.CreatedAt)
	}
}

func TestGetOrder(t *testing.T) {
	t.Run("misses then serves from cache", func(t *testing.T) {
		svc, store, cache := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
		_, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 1, Quantity: 1,
		})
		require.NoError(t, err)

		ord, err := svc.GetOrder(context.Background(), draft.ID)
		require.NoError(t, err)
		require.Len(t, ord.OrderItems, 1)

		// Drop the backing row; the cached projection still answers.
		delete(store.orders, draft.ID)

		cached, err := svc.GetOrder(context.Background(), draft.ID)
		require.NoError(t, err)
		assert.Equal(t, ord.OrderCode, cached.OrderCode)
		assert.NotEmpty(t, cache.entries)
	})

	t.Run("mutations invalidate the cached projection", func(t *testing.T) {
		svc, _, cache := newTestService(t)
		draft := mustCreateDraft(t, svc, order.TypeTakeaway, nil)

		_, err := svc.GetOrder(context.Background(), draft.ID)
		require.NoError(t, err)

		ord, err := svc.AddOrderItem(actorCtx(), AddOrderItemModel{
			OrderID: draft.ID, MenuItemID: 2, Quantity: 1,
		})
		require.NoError(t, err)
		assert.Contains(t, cache.removed, "orders:detail:"+strconv.FormatInt(draft.ID, 10))

		fresh, err := svc.GetOrder(context.Background(), draft.ID)
		require.NoError(t, err)
		assert.Equal(t, ord.TotalPriceCents, fresh.TotalPriceCents)
		require.Len(t, fresh.OrderItems, 1)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.GetOrder(context.Background(), 4242)

		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestListOrders(t *testing.T) {
	svc, _, _ := newTestService(t)
	first := mustCreateDraft(t, svc, order.TypeTakeaway, nil)
	second := mustCreateDraft(t, svc, order.TypeDineIn, int64Ptr(3))
	_, err := svc.SubmitOrderToKitchen(actorCtx(), second.ID)
	require.NoError(t, err)

	all, err := svc.ListOrders(context.Background(), order.QueryOrdersModel{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	drafts, err := svc.ListOrders(context.Background(), order.QueryOrdersModel{
		Status: order.StatusDraft.String(),
	})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, first.ID, drafts[0].ID)

	// The unfiltered page was cached; a repeat call must not double up.
	again, err := svc.ListOrders(context.Background(), order.QueryOrdersModel{})
	require.NoError(t, err)
	assert.Len(t, again, 2)
}
