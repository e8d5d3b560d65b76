package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderrepo"
	"github.com/quickserve/pos-order/internal/dal/postgres"
	"github.com/quickserve/pos-order/internal/service/models/currency"
	"github.com/quickserve/pos-order/internal/service/models/order"
	"github.com/quickserve/pos-order/internal/service/models/orderitem"
)

var orderColumns = []string{
	"id",
	"order_code",
	"order_type",
	"table_id",
	"note",
	"total_price_cents",
	"total_price_currency",
	"status",
	"is_priority",
	"version",
	"created_at",
	"updated_at",
	"completed_at",
	"canceled_at",
}

// OrderDal represents the order data access layer model.
type OrderDal struct {
	Id                 int64      `db:"id"`
	OrderCode          string     `db:"order_code"`
	OrderType          string     `db:"order_type"`
	TableId            *int64     `db:"table_id"`
	Note               string     `db:"note"`
	TotalPriceCents    int64      `db:"total_price_cents"`
	TotalPriceCurrency string     `db:"total_price_currency"`
	Status             string     `db:"status"`
	IsPriority         bool       `db:"is_priority"`
	Version            int64      `db:"version"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	CompletedAt        *time.Time `db:"completed_at"`
	CanceledAt         *time.Time `db:"canceled_at"`
}

// ToModel converts OrderDal to the service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.TotalPriceCurrency)
	if err != nil {
		return nil, err
	}

	orderType, ok := order.ParseType(o.OrderType)
	if !ok {
		return nil, fmt.Errorf("unknown order type %q", o.OrderType)
	}

	status, ok := order.ParseStatus(o.Status)
	if !ok {
		return nil, fmt.Errorf("unknown order status %q", o.Status)
	}

	return &order.Order{
		ID:                 o.Id,
		OrderCode:          o.OrderCode,
		OrderType:          orderType,
		TableID:            o.TableId,
		Note:               o.Note,
		TotalPriceCents:    o.TotalPriceCents,
		TotalPriceCurrency: cur,
		Status:             status,
		IsPriority:         o.IsPriority,
		Version:            o.Version,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		CompletedAt:        o.CompletedAt,
		CanceledAt:         o.CanceledAt,
		OrderItems:         []orderitem.OrderItem{}, // Populated separately
	}, nil
}

type PostgresOrderRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderRepository(conn postgres.Querier) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.Id,
		&dal.OrderCode,
		&dal.OrderType,
		&dal.TableId,
		&dal.Note,
		&dal.TotalPriceCents,
		&dal.TotalPriceCurrency,
		&dal.Status,
		&dal.IsPriority,
		&dal.Version,
		&dal.CreatedAt,
		&dal.UpdatedAt,
		&dal.CompletedAt,
		&dal.CanceledAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// Insert creates a new order row and returns it with the generated id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := sq.Insert("orders").
		Columns(
			"order_code",
			"order_type",
			"table_id",
			"note",
			"total_price_cents",
			"total_price_currency",
			"status",
			"is_priority",
			"created_at",
			"updated_at",
		).
		Values(
			o.OrderCode,
			o.OrderType.String(),
			o.TableID,
			o.Note,
			o.TotalPriceCents,
			o.TotalPriceCurrency.String(),
			o.Status.String(),
			o.IsPriority,
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING " + joinColumns(orderColumns)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	model, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	model.OrderItems = o.OrderItems

	return *model, nil
}

// GetByID retrieves a single order row without its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	query, args, err := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build select query: %w", err)
	}

	model, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, iorderrepo.ErrNotFound
		}

		return order.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return *model, nil
}

// Update persists the mutable order fields guarded by the version column.
// A concurrent writer that committed first makes this call fail with
// ErrVersionConflict instead of silently overwriting.
func (r *PostgresOrderRepository) Update(ctx context.Context, o *order.Order) error {
	query, args, err := sq.Update("orders").
		Set("order_type", o.OrderType.String()).
		Set("table_id", o.TableID).
		Set("note", o.Note).
		Set("total_price_cents", o.TotalPriceCents).
		Set("status", o.Status.String()).
		Set("is_priority", o.IsPriority).
		Set("version", o.Version+1).
		Set("updated_at", o.UpdatedAt).
		Set("completed_at", o.CompletedAt).
		Set("canceled_at", o.CanceledAt).
		Where(sq.Eq{"id": o.ID, "version": o.Version}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return iorderrepo.ErrVersionConflict
	}

	o.Version++

	return nil
}

// Query retrieves orders based on filter criteria.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}

	if filter.Type != "" {
		builder = builder.Where(sq.Eq{"order_type": filter.Type})
	}

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		model, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
