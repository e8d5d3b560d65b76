package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/quickserve/pos-order/internal/dal/interfaces/iauditrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/imenuitemrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderitemrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderrepo"
	"github.com/quickserve/pos-order/internal/dal/interfaces/ioutboxrepo"
	"github.com/quickserve/pos-order/internal/dal/postgres"
	auditrepo "github.com/quickserve/pos-order/internal/dal/repositories/audit/postgres"
	menuitemrepo "github.com/quickserve/pos-order/internal/dal/repositories/menuitem/postgres"
	orderrepo "github.com/quickserve/pos-order/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/quickserve/pos-order/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/quickserve/pos-order/internal/dal/repositories/outbox/postgres"
)

// unitOfWork scopes one business operation to a single transaction: every
// repository obtained from it after Begin runs on the same pgx.Tx, so the
// status transition, the total recomputation, the audit entry and the
// outbox event commit or roll back together.
type unitOfWork struct {
	client *postgres.Client
	tx     pgx.Tx

	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	auditRepo     iauditrepo.IAuditRepository
	menuItemRepo  imenuitemrepo.IMenuItemRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	u := &unitOfWork{client: client}
	u.bindRepositories(client.Pool())

	return u
}

func (u *unitOfWork) bindRepositories(conn postgres.Querier) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.auditRepo = auditrepo.NewAuditRepository(conn)
	u.menuItemRepo = menuitemrepo.NewMenuItemRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *unitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return u.auditRepo
}

func (u *unitOfWork) MenuItemRepository() imenuitemrepo.IMenuItemRepository {
	return u.menuItemRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bindRepositories(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Rollback(ctx)
}
