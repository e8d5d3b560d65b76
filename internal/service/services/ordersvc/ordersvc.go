package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/quickserve/pos-order/internal/apperr"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iauditrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/imenuitemrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderitemrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/ioutboxrepo"
	"github.com/quickserve/pos-order/internal/dal/postgres"
	"github.com/quickserve/pos-order/internal/dal/uow"
	"github.com/quickserve/pos-order/internal/service/models/auditlog"
	"github.com/quickserve/pos-order/internal/service/models/currency"
	"github.com/quickserve/pos-order/internal/service/models/identity"
	"github.com/quickserve/pos-order/internal/service/models/menuitem"
	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/service/models/orderitem"
	"github.com/quickserve/pos-order/internal/service/models/outbox"
)

const (
	cacheKeyOrderDetail = "orders:detail:%d"
	cacheKeyOrderList   = "orders:list:%s:%s:%d:%d"
	cachePrefixOrders   = "orders:list:"

	ordersExchange = "pos.orders"
)

// Stable conflict failures surfaced by the lifecycle engine.
var (
	ErrOrderNotReadyForCompletion = apperr.Conflict("order has items that are not ready, cancelled or rejected")
	ErrInvalidStatusForCancel     = apperr.Conflict("order is already completed or cancelled")
)

// unitOfWork scopes one lifecycle command to a single atomic commit.
type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	AuditRepository() iauditrepo.IAuditRepository
	MenuItemRepository() imenuitemrepo.IMenuItemRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// cacheGateway is the engine's view of the cache: read-through on queries,
// best-effort invalidation after every successful commit.
type cacheGateway interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	RemoveByPrefix(ctx context.Context, prefix string) error
}

// OrderService owns the order and order-item state machines.
type OrderService struct {
	pgClient   *postgres.Client
	cache      cacheGateway
	uowFactory func() unitOfWork
	now        func() time.Time
	cacheTTL   time.Duration
}

func (s *OrderService) newUOW() unitOfWork {
	return s.uowFactory()
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		now:      time.Now,
		cacheTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.uowFactory == nil && s.pgClient == nil {
		panic("ordersvc: no persistence configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
		s.uowFactory = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithCacheGateway sets the cache collaborator.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCacheGateway(cache cacheGateway) option {
	return func(s *OrderService) {
		s.cache = cache
	}
}

// WithUnitOfWorkFactory overrides the unit-of-work source, used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *OrderService) {
		s.uowFactory = factory
	}
}

// WithClock overrides the time source, used by tests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// WithCacheTTL sets the TTL for cached order projections.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCacheTTL(ttl time.Duration) option {
	return func(s *OrderService) {
		s.cacheTTL = ttl
	}
}

// CreateDraftOrderModel carries the createDraftOrder command input.
type CreateDraftOrderModel struct {
	OrderType  order.Type
	TableID    *int64
	Note       string
	IsPriority bool
}

// DraftItemModel is one requested line item for add/replace commands.
type DraftItemModel struct {
	MenuItemID             int64
	Quantity               int
	Note                   string
	SelectedOptionValueIDs []int64
}

// AddOrderItemModel carries the addOrderItem command input.
type AddOrderItemModel struct {
	OrderID                int64
	MenuItemID             int64
	Quantity               int
	Note                   string
	SelectedOptionValueIDs []int64
}

// UpdateDraftOrderModel carries the updateDraftOrder command input. The
// item list fully replaces the draft's current items.
type UpdateDraftOrderModel struct {
	OrderID    int64
	OrderType  order.Type
	TableID    *int64
	Note       string
	IsPriority bool
	Items      []DraftItemModel
}

// CreateDraftOrder creates a new order in Draft with a generated order
// code. A dine-in order without a table reference is rejected before any
// write. Creation is intentionally not audited; every later mutation is.
func (s *OrderService) CreateDraftOrder(ctx context.Context, model CreateDraftOrderModel) (order.Order, error) {
	if _, ok := order.ParseType(model.OrderType.String()); !ok {
		return order.Order{}, apperr.Validation("unknown order type")
	}

	if model.OrderType == order.TypeDineIn && model.TableID == nil {
		return order.Order{}, apperr.Validation("tableId is required for dine-in orders")
	}

	now := s.now()
	draft := order.Order{
		OrderCode:          order.NewOrderCode(now),
		OrderType:          model.OrderType,
		TableID:            model.TableID,
		Note:               model.Note,
		TotalPriceCents:    0,
		TotalPriceCurrency: currency.CurrencyVND,
		Status:             order.StatusDraft,
		IsPriority:         model.IsPriority,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	created, err := work.OrderRepository().Insert(ctx, draft)
	if err != nil {
		return order.Order{}, apperr.Internal("failed to create draft order", err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit draft order", err)
	}

	s.invalidateOrderCache(ctx, created.ID)

	return created, nil
}

// SubmitOrderToKitchen transitions a draft order to Preparing. Only legal
// from Draft.
func (s *OrderService) SubmitOrderToKitchen(ctx context.Context, orderID int64) (order.Order, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return order.Order{}, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	ord, items, err := s.loadAggregate(ctx, work, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if ord.Status != order.StatusDraft {
		return order.Order{}, apperr.Conflict("only draft orders can be submitted to the kitchen")
	}

	before := ord
	now := s.now()
	ord.Status = order.StatusPreparing
	ord.UpdatedAt = now
	ord.RecalculateTotal(items)

	if err := s.persistOrder(ctx, work, &ord); err != nil {
		return order.Order{}, err
	}

	entry := auditlog.NewEntry(ord.ID, auditlog.ActionSubmitOrder, actor.ActorID, "",
		&auditlog.Snapshot{Before: before.Status, After: ord.Status}, now)
	if err := work.AuditRepository().Record(ctx, entry); err != nil {
		return order.Order{}, apperr.Internal("failed to record audit entry", err)
	}

	if err := s.enqueueOrderEvent(ctx, work, "order.submitted", ord, now); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit order submission", err)
	}

	s.invalidateOrderCache(ctx, ord.ID)
	ord.OrderItems = items

	return ord, nil
}

// AddOrderItem appends a line item with price, name and option snapshots
// copied from the current catalog state, then recomputes the order total.
func (s *OrderService) AddOrderItem(ctx context.Context, model AddOrderItemModel) (order.Order, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return order.Order{}, err
	}

	if model.Quantity <= 0 {
		return order.Order{}, apperr.Validation("quantity must be positive")
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	ord, _, err := s.loadAggregate(ctx, work, model.OrderID)
	if err != nil {
		return order.Order{}, err
	}

	if ord.Status.IsTerminal() {
		return order.Order{}, apperr.Conflict("cannot add items to a completed or cancelled order")
	}

	item, err := s.snapshotItem(ctx, work, DraftItemModel{
		MenuItemID:             model.MenuItemID,
		Quantity:               model.Quantity,
		Note:                   model.Note,
		SelectedOptionValueIDs: model.SelectedOptionValueIDs,
	}, ord.ID)
	if err != nil {
		return order.Order{}, err
	}

	inserted, err := work.OrderItemRepository().BulkInsert(ctx, []orderitem.OrderItem{item})
	if err != nil {
		return order.Order{}, apperr.Internal("failed to insert order item", err)
	}

	// The total is always re-derived from the authoritative persisted item
	// set rather than adjusted incrementally.
	items, err := work.OrderItemRepository().ListByOrderID(ctx, ord.ID)
	if err != nil {
		return order.Order{}, apperr.Internal("failed to load order items", err)
	}

	now := s.now()
	ord.RecalculateTotal(items)
	ord.UpdatedAt = now

	if err := s.persistOrder(ctx, work, &ord); err != nil {
		return order.Order{}, err
	}

	entry := auditlog.NewEntry(ord.ID, auditlog.ActionAddItem, actor.ActorID, "",
		&auditlog.Snapshot{After: inserted[0]}, now)
	if err := work.AuditRepository().Record(ctx, entry); err != nil {
		return order.Order{}, apperr.Internal("failed to record audit entry", err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit order item", err)
	}

	s.invalidateOrderCache(ctx, ord.ID)
	ord.OrderItems = items

	return ord, nil
}

// UpdateDraftOrder fully replaces a draft order's line items and metadata.
// Only legal while the order is still Draft.
func (s *OrderService) UpdateDraftOrder(ctx context.Context, model UpdateDraftOrderModel) (order.Order, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return order.Order{}, err
	}

	if _, ok := order.ParseType(model.OrderType.String()); !ok {
		return order.Order{}, apperr.Validation("unknown order type")
	}

	if model.OrderType == order.TypeDineIn && model.TableID == nil {
		return order.Order{}, apperr.Validation("tableId is required for dine-in orders")
	}

	for _, item := range model.Items {
		if item.Quantity <= 0 {
			return order.Order{}, apperr.Validation("quantity must be positive")
		}
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	ord, _, err := s.loadAggregate(ctx, work, model.OrderID)
	if err != nil {
		return order.Order{}, err
	}

	if ord.Status != order.StatusDraft {
		return order.Order{}, apperr.Conflict("only draft orders can be updated")
	}

	if err := work.OrderItemRepository().DeleteByOrderID(ctx, ord.ID); err != nil {
		return order.Order{}, apperr.Internal("failed to replace order items", err)
	}

	newItems := make([]orderitem.OrderItem, 0, len(model.Items))
	for _, m := range model.Items {
		item, err := s.snapshotItem(ctx, work, m, ord.ID)
		if err != nil {
			return order.Order{}, err
		}
		newItems = append(newItems, item)
	}

	inserted, err := work.OrderItemRepository().BulkInsert(ctx, newItems)
	if err != nil {
		return order.Order{}, apperr.Internal("failed to insert order items", err)
	}

	now := s.now()
	ord.OrderType = model.OrderType
	ord.TableID = model.TableID
	ord.Note = model.Note
	ord.IsPriority = model.IsPriority
	ord.RecalculateTotal(inserted)
	ord.UpdatedAt = now

	if err := s.persistOrder(ctx, work, &ord); err != nil {
		return order.Order{}, err
	}

	entry := auditlog.NewEntry(ord.ID, auditlog.ActionUpdateOrder, actor.ActorID, "",
		&auditlog.Snapshot{After: inserted}, now)
	if err := work.AuditRepository().Record(ctx, entry); err != nil {
		return order.Order{}, apperr.Internal("failed to record audit entry", err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit draft update", err)
	}

	s.invalidateOrderCache(ctx, ord.ID)
	ord.OrderItems = inserted

	return ord, nil
}

// UpdateOrderItemStatus advances one item through the kitchen progression
// or rejects it. The parent order's status and total follow the item set.
func (s *OrderService) UpdateOrderItemStatus(ctx context.Context, orderItemID int64, newStatus orderitem.Status) (order.Order, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return order.Order{}, err
	}

	if _, ok := orderitem.ParseStatus(newStatus.String()); !ok {
		return order.Order{}, apperr.Validation("unknown order item status")
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	item, err := work.OrderItemRepository().GetByID(ctx, orderItemID)
	if err != nil {
		if errors.Is(err, iorderitemrepo.ErrNotFound) {
			return order.Order{}, apperr.NotFound("order item not found")
		}

		return order.Order{}, apperr.Internal("failed to load order item", err)
	}

	if !item.Status.CanTransitionTo(newStatus) {
		return order.Order{}, apperr.Conflict(
			fmt.Sprintf("order item cannot move from %s to %s", item.Status, newStatus))
	}

	ord, err := work.OrderRepository().GetByID(ctx, item.OrderID)
	if err != nil {
		return order.Order{}, apperr.Internal("failed to load order", err)
	}

	if ord.Status.IsTerminal() {
		return order.Order{}, apperr.Conflict("order is already completed or cancelled")
	}

	before := item
	now := s.now()
	item.Status = newStatus
	item.UpdatedAt = now
	if newStatus == orderitem.StatusCancelled {
		item.CanceledAt = &now
	}

	if err := work.OrderItemRepository().Update(ctx, &item); err != nil {
		return order.Order{}, apperr.Internal("failed to update order item", err)
	}

	items, err := work.OrderItemRepository().ListByOrderID(ctx, ord.ID)
	if err != nil {
		return order.Order{}, apperr.Internal("failed to load order items", err)
	}

	ord.RecalculateTotal(items)
	ord.Status = ord.DeriveStatusFromItems(items)
	ord.UpdatedAt = now

	if err := s.persistOrder(ctx, work, &ord); err != nil {
		return order.Order{}, err
	}

	entry := auditlog.NewEntry(ord.ID, auditlog.ActionUpdateItemStatus, actor.ActorID, "",
		&auditlog.Snapshot{Before: before.Status, After: item.Status}, now)
	if err := work.AuditRepository().Record(ctx, entry); err != nil {
		return order.Order{}, apperr.Internal("failed to record audit entry", err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit item status update", err)
	}

	s.invalidateOrderCache(ctx, ord.ID)
	ord.OrderItems = items

	return ord, nil
}

// CancelOrderItem cancels one item, stamps its cancellation time and
// recomputes the parent total excluding cancelled and rejected items.
func (s *OrderService) CancelOrderItem(ctx context.Context, orderItemID int64, reason string) (order.Order, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return order.Order{}, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	item, err := work.OrderItemRepository().GetByID(ctx, orderItemID)
	if err != nil {
		if errors.Is(err, iorderitemrepo.ErrNotFound) {
			return order.Order{}, apperr.NotFound("order item not found")
		}

		return order.Order{}, apperr.Internal("failed to load order item", err)
	}

	if item.Status.IsTerminal() {
		return order.Order{}, apperr.Conflict("order item is already cancelled or rejected")
	}

	ord, err := work.OrderRepository().GetByID(ctx, item.OrderID)
	if err != nil {
		return order.Order{}, apperr.Internal("failed to load order", err)
	}

	if ord.Status.IsTerminal() {
		return order.Order{}, apperr.Conflict("order is already completed or cancelled")
	}

	before := item
	now := s.now()
	item.Cancel(now)

	if err := work.OrderItemRepository().Update(ctx, &item); err != nil {
		return order.Order{}, apperr.Internal("failed to update order item", err)
	}

	items, err := work.OrderItemRepository().ListByOrderID(ctx, ord.ID)
	if err != nil {
		return order.Order{}, apperr.Internal("failed to load order items", err)
	}

	ord.RecalculateTotal(items)
	ord.UpdatedAt = now

	if err := s.persistOrder(ctx, work, &ord); err != nil {
		return order.Order{}, err
	}

	entry := auditlog.NewEntry(ord.ID, auditlog.ActionCancelItem, actor.ActorID, reason,
		&auditlog.Snapshot{Before: before, After: item}, now)
	if err := work.AuditRepository().Record(ctx, entry); err != nil {
		return order.Order{}, apperr.Internal("failed to record audit entry", err)
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit item cancellation", err)
	}

	s.invalidateOrderCache(ctx, ord.ID)
	ord.OrderItems = items

	return ord, nil
}

// CancelOrder transitions the whole order to Cancelled and cascades the
// cancellation to every non-terminal item.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, reason string) (order.Order, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return order.Order{}, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	ord, items, err := s.loadAggregate(ctx, work, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if ord.Status.IsTerminal() {
		return order.Order{}, ErrInvalidStatusForCancel
	}

	before := ord
	now := s.now()

	for i := range items {
		if items[i].Status.IsTerminal() {
			continue
		}

		items[i].Cancel(now)
		if err := work.OrderItemRepository().Update(ctx, &items[i]); err != nil {
			return order.Order{}, apperr.Internal("failed to cancel order item", err)
		}
	}

	ord.Status = order.StatusCancelled
	ord.CanceledAt = &now
	ord.UpdatedAt = now
	ord.RecalculateTotal(items)

	if err := s.persistOrder(ctx, work, &ord); err != nil {
		return order.Order{}, err
	}

	entry := auditlog.NewEntry(ord.ID, auditlog.ActionCancelOrder, actor.ActorID, reason,
		&auditlog.Snapshot{Before: before.Status, After: ord.Status}, now)
	if err := work.AuditRepository().Record(ctx, entry); err != nil {
		return order.Order{}, apperr.Internal("failed to record audit entry", err)
	}

	if err := s.enqueueOrderEvent(ctx, work, "order.cancelled", ord, now); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit order cancellation", err)
	}

	s.invalidateOrderCache(ctx, ord.ID)
	ord.OrderItems = items

	return ord, nil
}

// CompleteOrder transitions the order to Completed once every item is
// ready, cancelled or rejected, and stamps the completion time.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID int64) (order.Order, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return order.Order{}, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to begin transaction", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	ord, items, err := s.loadAggregate(ctx, work, orderID)
	if err != nil {
		return order.Order{}, err
	}

	if ord.Status.IsTerminal() {
		return order.Order{}, apperr.Conflict("order is already completed or cancelled")
	}

	ord.OrderItems = items
	if !ord.CanComplete() {
		return order.Order{}, ErrOrderNotReadyForCompletion
	}

	before := ord
	now := s.now()
	ord.Status = order.StatusCompleted
	ord.CompletedAt = &now
	ord.UpdatedAt = now
	ord.RecalculateTotal(items)

	if err := s.persistOrder(ctx, work, &ord); err != nil {
		return order.Order{}, err
	}

	entry := auditlog.NewEntry(ord.ID, auditlog.ActionCompleteOrder, actor.ActorID, "",
		&auditlog.Snapshot{Before: before.Status, After: ord.Status}, now)
	if err := work.AuditRepository().Record(ctx, entry); err != nil {
		return order.Order{}, apperr.Internal("failed to record audit entry", err)
	}

	if err := s.enqueueOrderEvent(ctx, work, "order.completed", ord, now); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, apperr.Internal("failed to commit order completion", err)
	}

	s.invalidateOrderCache(ctx, ord.ID)

	return ord, nil
}

// GetOrder retrieves one order with its items, read-through cached.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (order.Order, error) {
	key := fmt.Sprintf(cacheKeyOrderDetail, orderID)
	if s.cache != nil {
		var cached order.Order
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	work := s.newUOW()
	ord, items, err := s.loadAggregate(ctx, work, orderID)
	if err != nil {
		return order.Order{}, err
	}
	ord.OrderItems = items

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, ord, s.cacheTTL)
	}

	return ord, nil
}

// ListOrders retrieves orders matching the filter, read-through cached per
// filter variant.
func (s *OrderService) ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	key := fmt.Sprintf(cacheKeyOrderList, filter.Status, filter.Type, filter.Limit, filter.Offset)
	if s.cache != nil && len(filter.Ids) == 0 {
		var cached []order.Order
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	work := s.newUOW()
	orders, err := work.OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, apperr.Internal("failed to query orders", err)
	}

	if orders == nil {
		orders = []order.Order{}
	}

	for i := range orders {
		items, err := work.OrderItemRepository().ListByOrderID(ctx, orders[i].ID)
		if err != nil {
			return nil, apperr.Internal("failed to load order items", err)
		}
		orders[i].OrderItems = items
	}

	if s.cache != nil && len(filter.Ids) == 0 {
		_ = s.cache.Set(ctx, key, orders, s.cacheTTL)
	}

	return orders, nil
}

// loadAggregate loads the order row and its full item set inside the
// current unit of work.
func (s *OrderService) loadAggregate(ctx context.Context, work unitOfWork, orderID int64) (order.Order, []orderitem.OrderItem, error) {
	ord, err := work.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, iorderrepo.ErrNotFound) {
			return order.Order{}, nil, apperr.NotFound("order not found")
		}

		return order.Order{}, nil, apperr.Internal("failed to load order", err)
	}

	items, err := work.OrderItemRepository().ListByOrderID(ctx, orderID)
	if err != nil {
		return order.Order{}, nil, apperr.Internal("failed to load order items", err)
	}

	return ord, items, nil
}

// snapshotItem copies code, name, station, unit price and the selected
// option groups by value from the live catalog into a new order item. The
// copies are never re-derived afterwards.
func (s *OrderService) snapshotItem(ctx context.Context, work unitOfWork, model DraftItemModel, orderID int64) (orderitem.OrderItem, error) {
	menu, err := work.MenuItemRepository().GetByID(ctx, model.MenuItemID)
	if err != nil {
		if errors.Is(err, imenuitemrepo.ErrNotFound) {
			return orderitem.OrderItem{}, apperr.NotFound("menu item not found")
		}

		return orderitem.OrderItem{}, apperr.Internal("failed to load menu item", err)
	}

	if !menu.IsAvailable {
		return orderitem.OrderItem{}, apperr.Validation("menu item is not available for ordering")
	}

	options, err := snapshotOptions(menu, model.SelectedOptionValueIDs)
	if err != nil {
		return orderitem.OrderItem{}, err
	}

	now := s.now()

	return orderitem.OrderItem{
		OrderID:           orderID,
		MenuItemID:        menu.ID,
		ItemCode:          menu.ItemCode,
		ItemName:          menu.ItemName,
		Station:           menu.Station,
		UnitPriceCents:    menu.PriceCents,
		UnitPriceCurrency: menu.Currency,
		Quantity:          model.Quantity,
		Note:              model.Note,
		Status:            orderitem.StatusPreparing,
		Options:           options,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// snapshotOptions resolves the selected option value ids against the
// catalog and copies labels and extra prices by value.
func snapshotOptions(menu menuitem.MenuItem, selectedValueIDs []int64) ([]orderitem.OptionGroup, error) {
	if len(selectedValueIDs) == 0 {
		return nil, nil
	}

	selected := make(map[int64]bool, len(selectedValueIDs))
	for _, id := range selectedValueIDs {
		selected[id] = true
	}

	var groups []orderitem.OptionGroup
	matched := 0
	for _, group := range menu.OptionGroups {
		var values []orderitem.OptionValue
		for _, value := range group.Values {
			if !selected[value.ID] {
				continue
			}

			values = append(values, orderitem.OptionValue{
				ValueLabel:      value.ValueLabel,
				ExtraPriceCents: value.ExtraPriceCents,
			})
			matched++
		}

		if len(values) > 0 {
			groups = append(groups, orderitem.OptionGroup{
				GroupName: group.GroupName,
				Values:    values,
			})
		}
	}

	if matched != len(selected) {
		return nil, apperr.Validation("selected option does not belong to the menu item")
	}

	return groups, nil
}

// persistOrder writes the order row and maps a lost optimistic-lock race
// to a conflict the caller can retry.
func (s *OrderService) persistOrder(ctx context.Context, work unitOfWork, ord *order.Order) error {
	if err := work.OrderRepository().Update(ctx, ord); err != nil {
		if errors.Is(err, iorderrepo.ErrVersionConflict) {
			return apperr.Conflict("order was modified concurrently, retry the operation")
		}

		return apperr.Internal("failed to update order", err)
	}

	return nil
}

// enqueueOrderEvent stores an order lifecycle event in the outbox within
// the current transaction. The outbox worker delivers it to RabbitMQ
// best-effort after commit.
func (s *OrderService) enqueueOrderEvent(ctx context.Context, work unitOfWork, routingKey string, ord order.Order, now time.Time) error {
	payload, err := json.Marshal(ord)
	if err != nil {
		return apperr.Internal("failed to marshal order event", err)
	}

	maxRetries := viper.GetInt("rabbitmq.outbox.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	msg := outbox.Message{
		ExchangeName: ordersExchange,
		RoutingKey:   routingKey,
		Payload:      payload,
		ContentType:  "application/json",
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	}

	if err := work.OutboxRepository().Insert(ctx, msg); err != nil {
		return apperr.Internal("failed to enqueue order event", err)
	}

	return nil
}

// invalidateOrderCache drops the detail key and every list-page variant
// after a successful commit. Best-effort: a stale entry between commit and
// invalidation is acceptable, serving a rolled-back write is not.
func (s *OrderService) invalidateOrderCache(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Remove(ctx, fmt.Sprintf(cacheKeyOrderDetail, orderID)); err != nil {
		slog.Warn("Failed to invalidate order detail cache", "order_id", orderID, "error", err)
	}

	if err := s.cache.RemoveByPrefix(ctx, cachePrefixOrders); err != nil {
		slog.Warn("Failed to invalidate order list cache", "order_id", orderID, "error", err)
	}
}
