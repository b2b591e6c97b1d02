package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/stock"
)

func testOrder() Order {
	return Order{
		ID:               1,
		HourlyRate:       decimal.NewFromInt(100),
		MaterialUpcharge: decimal.NewFromInt(20),
		Tax:              decimal.NewFromInt(10),
		Discount:         decimal.NewFromInt(5),
		Callout:          CalloutStandard,
	}
}

func workLog(hours float64) WorkLog {
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	return WorkLog{
		OrderID:   1,
		StartedAt: start,
		EndedAt:   start.Add(time.Duration(hours * float64(time.Hour))),
	}
}

func materialLine(cost float64) ConsumptionLine {
	return ConsumptionLine{
		Entry:    stock.ConsumptionEntry{OrderID: 1, Cost: decimal.NewFromFloat(cost)},
		ItemKind: stock.ItemKindMaterial,
	}
}

func TestComputePricingCascade(t *testing.T) {
	o := testOrder()
	logs := []WorkLog{workLog(5)}
	lines := []ConsumptionLine{materialLine(100)}
	costs := []CostLine{{OrderID: 1, Name: "Disposal fee", Cost: decimal.NewFromFloat(55.68)}}

	p := ComputePricing(o, logs, lines, costs, nil)

	require.InDelta(t, 5.0, p.HoursWorked, 0.0001)
	require.Equal(t, "500.00", p.LaborTotal.StringFixed(2))
	require.Equal(t, "120.00", p.MaterialTotal.StringFixed(2))
	require.Equal(t, "55.68", p.LineTotal.StringFixed(2))
	require.Equal(t, "725.68", p.Subtotal.StringFixed(2))
	require.Equal(t, "72.57", p.TaxTotal.StringFixed(2))
	require.Equal(t, "36.28", p.DiscountTotal.StringFixed(2))
	require.Equal(t, "761.96", p.Total.StringFixed(2))
	require.Equal(t, "761.96", p.WorkingTotal.StringFixed(2))
	require.False(t, p.Paid)
}

func TestComputePricingMinimumHours(t *testing.T) {
	o := testOrder()

	p := ComputePricing(o, nil, nil, nil, nil)
	require.InDelta(t, MinimumHours, p.HoursWorked, 0.0001)
	require.Equal(t, "300.00", p.LaborTotal.StringFixed(2))

	// A single short visit still bills the floor.
	p = ComputePricing(o, []WorkLog{workLog(1.5)}, nil, nil, nil)
	require.InDelta(t, MinimumHours, p.HoursWorked, 0.0001)

	// Multiple logs accumulate before the floor is applied.
	p = ComputePricing(o, []WorkLog{workLog(2), workLog(2)}, nil, nil, nil)
	require.InDelta(t, 4.0, p.HoursWorked, 0.0001)
}

func TestComputePricingToolsCarryNoMaterialCost(t *testing.T) {
	o := testOrder()
	lines := []ConsumptionLine{
		materialLine(100),
		{
			Entry:    stock.ConsumptionEntry{OrderID: 1, QuantityBroken: 1, Cost: decimal.NewFromInt(45)},
			ItemKind: stock.ItemKindTool,
		},
	}

	p := ComputePricing(o, nil, lines, nil, nil)
	require.Equal(t, "120.00", p.MaterialTotal.StringFixed(2))
}

func TestComputePricingUpchargeOnAggregate(t *testing.T) {
	o := testOrder()
	lines := []ConsumptionLine{materialLine(33.33), materialLine(66.67)}

	p := ComputePricing(o, nil, lines, nil, nil)
	require.Equal(t, "120.00", p.MaterialTotal.StringFixed(2))
}

func TestComputePricingPaymentReconciliation(t *testing.T) {
	o := testOrder()
	logs := []WorkLog{workLog(5)}
	lines := []ConsumptionLine{materialLine(100)}
	costs := []CostLine{{OrderID: 1, Name: "Disposal fee", Cost: decimal.NewFromFloat(55.68)}}
	payments := []Payment{{OrderID: 1, Kind: PaymentKindCash, Amount: decimal.NewFromInt(500)}}

	p := ComputePricing(o, logs, lines, costs, payments)
	require.Equal(t, "500.00", p.PaymentTotal.StringFixed(2))
	require.Equal(t, "261.96", p.WorkingTotal.StringFixed(2))
	require.False(t, p.Paid)

	// Overpayment clamps the working total and flips paid.
	payments = append(payments, Payment{OrderID: 1, Kind: PaymentKindCheck, Amount: decimal.NewFromInt(300)})
	p = ComputePricing(o, logs, lines, costs, payments)
	require.True(t, p.WorkingTotal.IsZero())
	require.True(t, p.Paid)
}

func TestComputePricingFullDiscount(t *testing.T) {
	o := testOrder()
	o.Tax = decimal.Zero
	o.Discount = decimal.NewFromInt(100)

	p := ComputePricing(o, nil, nil, nil, nil)
	require.True(t, p.Total.IsZero())
	require.True(t, p.Paid)
}

func TestWorkLogHours(t *testing.T) {
	w := workLog(2.5)
	require.InDelta(t, 2.5, w.Hours(), 0.0001)
}

func TestValidCallout(t *testing.T) {
	require.True(t, ValidCallout(CalloutStandard))
	require.True(t, ValidCallout(CalloutEmergency))
	require.False(t, ValidCallout(decimal.NewFromInt(75)))
}
