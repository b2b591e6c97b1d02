package orders

import (
	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/stock"
)

// Pricing is the derived financial state of an order: seven cascading
// stages followed by the payment reconciliation. Values keep their full
// precision; rounding to two places happens only where a figure leaves the
// system.
type Pricing struct {
	HoursWorked   float64
	LaborTotal    decimal.Decimal
	MaterialTotal decimal.Decimal
	LineTotal     decimal.Decimal
	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
	PaymentTotal  decimal.Decimal
	WorkingTotal  decimal.Decimal
	Paid          bool
}

var oneHundred = decimal.NewFromInt(100)

// ComputePricing derives the full cascade from the order and its live child
// collections. Each stage depends only on earlier stages or raw children,
// and every stage clamps at zero.
func ComputePricing(o Order, logs []WorkLog, lines []ConsumptionLine, costs []CostLine, payments []Payment) Pricing {
	var p Pricing

	hours := 0.0
	for _, log := range logs {
		hours += log.Hours()
	}
	if hours < MinimumHours {
		hours = MinimumHours
	}
	p.HoursWorked = hours

	p.LaborTotal = clampZero(o.HourlyRate.Mul(decimal.NewFromFloat(hours)))

	materialCost := decimal.Zero
	for _, line := range lines {
		if line.ItemKind == stock.ItemKindMaterial {
			materialCost = materialCost.Add(line.Entry.Cost)
		}
	}
	// The upcharge applies to the aggregate material cost, not per line.
	upcharge := decimal.NewFromInt(1).Add(o.MaterialUpcharge.Div(oneHundred))
	p.MaterialTotal = clampZero(materialCost.Mul(upcharge))

	lineTotal := decimal.Zero
	for _, c := range costs {
		lineTotal = lineTotal.Add(c.Cost)
	}
	p.LineTotal = clampZero(lineTotal)

	p.Subtotal = clampZero(p.LaborTotal.Add(p.MaterialTotal).Add(p.LineTotal).Add(o.Callout))

	p.TaxTotal = clampZero(o.Tax.Div(oneHundred).Mul(p.Subtotal))
	p.DiscountTotal = clampZero(o.Discount.Div(oneHundred).Mul(p.Subtotal))

	p.Total = clampZero(p.Subtotal.Add(p.TaxTotal).Sub(p.DiscountTotal))

	paymentTotal := decimal.Zero
	for _, pay := range payments {
		paymentTotal = paymentTotal.Add(pay.Amount)
	}
	p.PaymentTotal = clampZero(paymentTotal)
	p.WorkingTotal = clampZero(p.Total.Sub(p.PaymentTotal))
	p.Paid = p.WorkingTotal.IsZero()

	return p
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
