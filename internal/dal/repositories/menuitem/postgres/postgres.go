package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/quickserve/pos-order/internal/dal/interfaces/imenuitemrepo"
	"github.com/quickserve/pos-order/internal/dal/postgres"
	"github.com/quickserve/pos-order/internal/service/models/currency"
	"github.com/quickserve/pos-order/internal/service/models/menuitem"
)

// MenuItemRepository is the engine's read-only access to the menu catalog.
// Catalog CRUD belongs to a different service; the order engine only reads
// the current state to snapshot it into order items.
type MenuItemRepository struct {
	conn postgres.Querier
}

func NewMenuItemRepository(conn postgres.Querier) *MenuItemRepository {
	return &MenuItemRepository{
		conn: conn,
	}
}

// GetByID retrieves a menu item with its option groups and values.
func (r *MenuItemRepository) GetByID(ctx context.Context, id int64) (menuitem.MenuItem, error) {
	query, args, err := sq.Select(
		"id",
		"item_code",
		"item_name",
		"station",
		"price_cents",
		"price_currency",
		"is_available",
		"created_at",
		"updated_at",
	).
		From("menu_items").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return menuitem.MenuItem{}, fmt.Errorf("failed to build select query: %w", err)
	}

	var (
		item        menuitem.MenuItem
		rawCurrency string
		createdAt   time.Time
		updatedAt   time.Time
	)
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&item.ID,
		&item.ItemCode,
		&item.ItemName,
		&item.Station,
		&item.PriceCents,
		&rawCurrency,
		&item.IsAvailable,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return menuitem.MenuItem{}, imenuitemrepo.ErrNotFound
		}

		return menuitem.MenuItem{}, fmt.Errorf("failed to get menu item: %w", err)
	}

	cur, err := currency.ParseCurrency(rawCurrency)
	if err != nil {
		return menuitem.MenuItem{}, err
	}
	item.Currency = cur
	item.CreatedAt = createdAt
	item.UpdatedAt = updatedAt

	groups, err := r.loadOptionGroups(ctx, id)
	if err != nil {
		return menuitem.MenuItem{}, err
	}
	item.OptionGroups = groups

	return item, nil
}

func (r *MenuItemRepository) loadOptionGroups(ctx context.Context, menuItemID int64) ([]menuitem.OptionGroup, error) {
	query, args, err := sq.Select(
		"g.id",
		"g.group_name",
		"v.id",
		"v.value_label",
		"v.extra_price_cents",
	).
		From("menu_item_option_groups g").
		Join("menu_item_option_values v ON v.group_id = g.id").
		Where(sq.Eq{"g.menu_item_id": menuItemID}).
		OrderBy("g.id ASC", "v.id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build option group select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query option groups: %w", err)
	}
	defer rows.Close()

	var groups []menuitem.OptionGroup
	for rows.Next() {
		var (
			groupID    int64
			groupName  string
			valueID    int64
			valueLabel string
			extraCents int64
		)
		if err := rows.Scan(&groupID, &groupName, &valueID, &valueLabel, &extraCents); err != nil {
			return nil, fmt.Errorf("failed to scan option group: %w", err)
		}

		value := menuitem.OptionValue{ID: valueID, ValueLabel: valueLabel, ExtraPriceCents: extraCents}
		if n := len(groups); n > 0 && groups[n-1].ID == groupID {
			groups[n-1].Values = append(groups[n-1].Values, value)
		} else {
			groups = append(groups, menuitem.OptionGroup{
				ID:        groupID,
				GroupName: groupName,
				Values:    []menuitem.OptionValue{value},
			})
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return groups, nil
}
