package menuitem

import (
	"time"

	"github.com/quickserve/pos-order/internal/service/models/currency"
)

// OptionValue is a selectable value within a catalog option group.
type OptionValue struct {
	ID              int64  `json:"id"`
	ValueLabel      string `json:"valueLabel"`
	ExtraPriceCents int64  `json:"extraPriceCents"`
}

// OptionGroup groups selectable values for a menu item.
type OptionGroup struct {
	ID        int64         `json:"id"`
	GroupName string        `json:"groupName"`
	Values    []OptionValue `json:"values"`
}

// MenuItem is the catalog entity the order engine snapshots from.
// The engine only ever reads it; catalog management lives elsewhere.
type MenuItem struct {
	ID           int64             `json:"id"`
	ItemCode     string            `json:"itemCode"`
	ItemName     string            `json:"itemName"`
	Station      string            `json:"station"`
	PriceCents   int64             `json:"priceCents"`
	Currency     currency.Currency `json:"currency"`
	IsAvailable  bool              `json:"isAvailable"`
	OptionGroups []OptionGroup     `json:"optionGroups,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
