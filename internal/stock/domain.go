package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind discriminates the two tracked inventory kinds.
type ItemKind string

const (
	// ItemKindMaterial is consumed by quantity on orders.
	ItemKindMaterial ItemKind = "material"
	// ItemKindTool only leaves stock when broken; use does not consume it.
	ItemKindTool ItemKind = "tool"
)

// Item is a tracked stock item. Availability and unit cost are never stored
// on the row; they are derived from the ledger entries referencing it.
type Item struct {
	ID          int64
	Kind        ItemKind
	Name        string
	Size        string
	Brand       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemState carries the derived values for one item as of the last
// committed write.
type ItemState struct {
	AvailableQuantity float64
	UnitCost          decimal.Decimal
}

// PurchaseEntry records stock arriving with its cost basis. Quantity zero is
// legal and records a cost-only adjustment.
type PurchaseEntry struct {
	ID         int64
	PurchaseID int64
	ItemID     int64
	Quantity   float64
	Cost       decimal.Decimal
	CreatedAt  time.Time
}

// ConsumptionEntry records stock leaving via an order. Quantity is the used
// amount; for tools only QuantityBroken reduces availability. Cost is a
// snapshot of the item's unit cost at creation time and never changes
// afterwards.
type ConsumptionEntry struct {
	ID             int64
	OrderID        int64
	ItemID         int64
	Quantity       float64
	QuantityBroken float64
	Cost           decimal.Decimal
	CreatedAt      time.Time
}

// Consumed returns the quantity this entry removes from availability.
func (e ConsumptionEntry) Consumed(kind ItemKind) float64 {
	if kind == ItemKindTool {
		return e.QuantityBroken
	}
	return e.Quantity
}

// ErrNegativeQuantity indicates a quantity below zero.
var ErrNegativeQuantity = errors.New("stock: quantity must be >= 0")

// ErrNegativeCost indicates a cost below zero.
var ErrNegativeCost = errors.New("stock: cost must be >= 0")

// ErrKindMismatch indicates a ledger entry aimed at the wrong item kind.
var ErrKindMismatch = errors.New("stock: ledger entry does not match item kind")

// AvailableQuantity derives availability from the ledger sums. Consumption
// exceeding recorded purchases (data entered out of order) clamps silently
// to zero; negative stock is never reported.
func AvailableQuantity(purchased, consumed float64) float64 {
	if available := purchased - consumed; available > 0 {
		return available
	}
	return 0
}

// UnitCost derives the item's unit cost on a last-cost basis: cost over
// quantity of the most recently created purchase entry, rounded to two
// places. No entry, or a latest entry with zero quantity, yields 0.00;
// the previous cost is not retained.
func UnitCost(latest *PurchaseEntry) decimal.Decimal {
	if latest == nil || latest.Quantity <= 0 {
		return decimal.Zero
	}
	return latest.Cost.Div(decimal.NewFromFloat(latest.Quantity)).Round(2)
}
