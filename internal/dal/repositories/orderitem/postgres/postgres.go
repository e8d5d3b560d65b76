package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/quickserve/pos-order/internal/dal/interfaces/iorderitemrepo"
	"github.com/quickserve/pos-order/internal/dal/postgres"
	"github.com/quickserve/pos-order/internal/service/models/currency"
	"github.com/quickserve/pos-order/internal/service/models/orderitem"
)

var orderItemColumns = []string{
	"id",
	"order_id",
	"menu_item_id",
	"item_code",
	"item_name",
	"station",
	"unit_price_cents",
	"unit_price_currency",
	"quantity",
	"note",
	"status",
	"created_at",
	"updated_at",
	"canceled_at",
}

// OrderItemDal represents the order item data access layer model.
type OrderItemDal struct {
	Id                int64      `db:"id"`
	OrderId           int64      `db:"order_id"`
	MenuItemId        int64      `db:"menu_item_id"`
	ItemCode          string     `db:"item_code"`
	ItemName          string     `db:"item_name"`
	Station           string     `db:"station"`
	UnitPriceCents    int64      `db:"unit_price_cents"`
	UnitPriceCurrency string     `db:"unit_price_currency"`
	Quantity          int        `db:"quantity"`
	Note              string     `db:"note"`
	Status            string     `db:"status"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	CanceledAt        *time.Time `db:"canceled_at"`
}

// ToModel converts OrderItemDal to the service layer OrderItem model.
func (i *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	cur, err := currency.ParseCurrency(i.UnitPriceCurrency)
	if err != nil {
		return nil, err
	}

	status, ok := orderitem.ParseStatus(i.Status)
	if !ok {
		return nil, fmt.Errorf("unknown order item status %q", i.Status)
	}

	return &orderitem.OrderItem{
		ID:                i.Id,
		OrderID:           i.OrderId,
		MenuItemID:        i.MenuItemId,
		ItemCode:          i.ItemCode,
		ItemName:          i.ItemName,
		Station:           i.Station,
		UnitPriceCents:    i.UnitPriceCents,
		UnitPriceCurrency: cur,
		Quantity:          i.Quantity,
		Note:              i.Note,
		Status:            status,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
		CanceledAt:        i.CanceledAt,
	}, nil
}

type PostgresOrderItemRepository struct {
	conn postgres.Querier
}

func NewPostgresOrderItemRepository(conn postgres.Querier) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
	}
}

func scanOrderItem(row pgx.Row) (*orderitem.OrderItem, error) {
	var dal OrderItemDal
	err := row.Scan(
		&dal.Id,
		&dal.OrderId,
		&dal.MenuItemId,
		&dal.ItemCode,
		&dal.ItemName,
		&dal.Station,
		&dal.UnitPriceCents,
		&dal.UnitPriceCurrency,
		&dal.Quantity,
		&dal.Note,
		&dal.Status,
		&dal.CreatedAt,
		&dal.UpdatedAt,
		&dal.CanceledAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// BulkInsert inserts order items together with their option snapshots and
// returns the items with generated ids. Option snapshots are write-once:
// there is no update path for them.
func (r *PostgresOrderItemRepository) BulkInsert(ctx context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	if len(items) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	builder := sq.Insert("order_items").
		Columns(
			"order_id",
			"menu_item_id",
			"item_code",
			"item_name",
			"station",
			"unit_price_cents",
			"unit_price_currency",
			"quantity",
			"note",
			"status",
			"created_at",
			"updated_at",
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar)

	for _, item := range items {
		builder = builder.Values(
			item.OrderID,
			item.MenuItemID,
			item.ItemCode,
			item.ItemName,
			item.Station,
			item.UnitPriceCents,
			item.UnitPriceCurrency.String(),
			item.Quantity,
			item.Note,
			item.Status.String(),
			item.CreatedAt,
			item.UpdatedAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}

	ids := make([]int64, 0, len(items))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()

			return nil, fmt.Errorf("failed to scan order item id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(ids) != len(items) {
		return nil, fmt.Errorf("expected %d inserted order items, got %d", len(items), len(ids))
	}

	result := make([]orderitem.OrderItem, len(items))
	for i := range items {
		result[i] = items[i]
		result[i].ID = ids[i]
	}

	for i := range result {
		if err := r.insertOptions(ctx, result[i].ID, result[i].Options); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *PostgresOrderItemRepository) insertOptions(ctx context.Context, orderItemID int64, groups []orderitem.OptionGroup) error {
	if len(groups) == 0 {
		return nil
	}

	builder := sq.Insert("order_item_options").
		Columns(
			"order_item_id",
			"group_name",
			"value_label",
			"extra_price_cents",
		).
		PlaceholderFormat(sq.Dollar)

	for _, group := range groups {
		for _, value := range group.Values {
			builder = builder.Values(
				orderItemID,
				group.GroupName,
				value.ValueLabel,
				value.ExtraPriceCents,
			)
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build option snapshot insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert option snapshots: %w", err)
	}

	return nil
}

// GetByID retrieves a single order item with its option snapshots.
func (r *PostgresOrderItemRepository) GetByID(ctx context.Context, id int64) (orderitem.OrderItem, error) {
	query, args, err := sq.Select(orderItemColumns...).
		From("order_items").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return orderitem.OrderItem{}, fmt.Errorf("failed to build select query: %w", err)
	}

	model, err := scanOrderItem(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orderitem.OrderItem{}, iorderitemrepo.ErrNotFound
		}

		return orderitem.OrderItem{}, fmt.Errorf("failed to get order item: %w", err)
	}

	options, err := r.loadOptions(ctx, []int64{model.ID})
	if err != nil {
		return orderitem.OrderItem{}, err
	}
	model.Options = options[model.ID]

	return *model, nil
}

// Update persists the mutable fields of an order item. Snapshots taken at
// add-time (code, name, station, unit price, options) are never rewritten.
func (r *PostgresOrderItemRepository) Update(ctx context.Context, item *orderitem.OrderItem) error {
	query, args, err := sq.Update("order_items").
		Set("quantity", item.Quantity).
		Set("note", item.Note).
		Set("status", item.Status.String()).
		Set("updated_at", item.UpdatedAt).
		Set("canceled_at", item.CanceledAt).
		Where(sq.Eq{"id": item.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return iorderitemrepo.ErrNotFound
	}

	return nil
}

// ListByOrderID retrieves every item of an order with option snapshots.
func (r *PostgresOrderItemRepository) ListByOrderID(ctx context.Context, orderID int64) ([]orderitem.OrderItem, error) {
	query, args, err := sq.Select(orderItemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	var ids []int64
	for rows.Next() {
		model, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		result = append(result, *model)
		ids = append(ids, model.ID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(result) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	options, err := r.loadOptions(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Options = options[result[i].ID]
	}

	return result, nil
}

// DeleteByOrderID removes every item of an order, used by the draft full
// replace path. Option snapshots cascade through the FK.
func (r *PostgresOrderItemRepository) DeleteByOrderID(ctx context.Context, orderID int64) error {
	query, args, err := sq.Delete("order_items").
		Where(sq.Eq{"order_id": orderID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}

	return nil
}

func (r *PostgresOrderItemRepository) loadOptions(ctx context.Context, orderItemIDs []int64) (map[int64][]orderitem.OptionGroup, error) {
	query, args, err := sq.Select(
		"id",
		"order_item_id",
		"group_name",
		"value_label",
		"extra_price_cents",
	).
		From("order_item_options").
		Where(sq.Eq{"order_item_id": orderItemIDs}).
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build option snapshot select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query option snapshots: %w", err)
	}
	defer rows.Close()

	grouped := make(map[int64][]orderitem.OptionGroup)
	for rows.Next() {
		var (
			id          int64
			orderItemID int64
			groupName   string
			valueLabel  string
			extraCents  int64
		)
		if err := rows.Scan(&id, &orderItemID, &groupName, &valueLabel, &extraCents); err != nil {
			return nil, fmt.Errorf("failed to scan option snapshot: %w", err)
		}

		groups := grouped[orderItemID]
		value := orderitem.OptionValue{ID: id, ValueLabel: valueLabel, ExtraPriceCents: extraCents}

		if n := len(groups); n > 0 && groups[n-1].GroupName == groupName {
			groups[n-1].Values = append(groups[n-1].Values, value)
		} else {
			groups = append(groups, orderitem.OptionGroup{GroupName: groupName, Values: []orderitem.OptionValue{value}})
		}
		grouped[orderItemID] = groups
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return grouped, nil
}
