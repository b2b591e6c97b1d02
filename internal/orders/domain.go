package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// PaymentKind enumerates accepted payment instruments.
type PaymentKind string

const (
	PaymentKindCash  PaymentKind = "cash"
	PaymentKindCheck PaymentKind = "check"
)

// Callout fee tiers. The fee is one of exactly two fixed amounts.
var (
	CalloutStandard  = decimal.NewFromInt(50)
	CalloutEmergency = decimal.NewFromInt(100)
)

// MinimumHours is the minimum billed call-out duration: an order bills at
// least this many hours even with no work logged.
const MinimumHours = 3.0

// Order is a customer job. All of its money figures are derived on read
// from the child collections; none are stored.
type Order struct {
	ID               int64
	CustomerID       int64
	ServiceID        int64
	Date             time.Time
	Description      string
	HourlyRate       decimal.Decimal
	MaterialUpcharge decimal.Decimal
	Tax              decimal.Decimal
	Discount         decimal.Decimal
	Callout          decimal.Decimal
	Completed        bool
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkLog is a span of time worked on an order. End must be after start.
type WorkLog struct {
	ID        int64
	OrderID   int64
	StartedAt time.Time
	EndedAt   time.Time
}

// Hours returns the logged duration in hours.
func (w WorkLog) Hours() float64 {
	return w.EndedAt.Sub(w.StartedAt).Hours()
}

// CostLine is an arbitrary named charge added to the order subtotal.
type CostLine struct {
	ID      int64
	OrderID int64
	Name    string
	Cost    decimal.Decimal
}

// Payment is money received against an order.
type Payment struct {
	ID      int64
	OrderID int64
	Date    time.Time
	Kind    PaymentKind
	Amount  decimal.Decimal
	Notes   string
}

// ConsumptionLine pairs a consumption ledger entry with its item, for
// display and for the material total (tool entries carry no cost).
type ConsumptionLine struct {
	Entry    stock.ConsumptionEntry
	ItemKind stock.ItemKind
	ItemName string
}

// ErrWorkLogRange rejects a work log whose end is not after its start.
var ErrWorkLogRange = fmt.Errorf("%w: work log must end after it starts", shared.ErrRuleViolation)

// ErrUnknownPaymentKind rejects payment kinds outside cash/check.
var ErrUnknownPaymentKind = errors.New("orders: payment kind must be cash or check")

// ValidCallout reports whether the fee is one of the two allowed amounts.
func ValidCallout(fee decimal.Decimal) bool {
	return fee.Equal(CalloutStandard) || fee.Equal(CalloutEmergency)
}
