package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/stock"
)

// Purchase is a supplier purchase document. Its totals are never stored;
// they are recomputed from the live ledger entries on every read.
type Purchase struct {
	ID              int64
	SupplierID      int64
	SupplierAddress string
	Tax             decimal.Decimal
	Date            time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Receipt is a reference to an uploaded receipt image. Only the object key
// lives here; the bytes are stored elsewhere.
type Receipt struct {
	ID         uuid.UUID
	PurchaseID int64
	ObjectKey  string
	UploadedAt time.Time
}

// Line pairs a ledger entry with the item it references, for display and
// for splitting the totals per kind.
type Line struct {
	Entry    stock.PurchaseEntry
	ItemKind stock.ItemKind
	ItemName string
}

// Totals is the derived financial state of a purchase.
type Totals struct {
	MaterialTotal decimal.Decimal
	ToolTotal     decimal.Decimal
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
}

// ComputeTotals derives the purchase totals from its current lines. A
// purchase with no ledger entries totals exactly its tax.
func ComputeTotals(tax decimal.Decimal, lines []Line) Totals {
	t := Totals{MaterialTotal: decimal.Zero, ToolTotal: decimal.Zero}
	for _, line := range lines {
		switch line.ItemKind {
		case stock.ItemKindTool:
			t.ToolTotal = t.ToolTotal.Add(line.Entry.Cost)
		default:
			t.MaterialTotal = t.MaterialTotal.Add(line.Entry.Cost)
		}
	}
	t.Subtotal = t.MaterialTotal.Add(t.ToolTotal)
	t.Total = t.Subtotal.Add(tax)
	return t
}
