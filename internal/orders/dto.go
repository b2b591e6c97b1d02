package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpsertRequest creates or rewrites an order. The rate and percentage
// bounds mirror the office's billing policy.
type UpsertRequest struct {
	CustomerID       int64   `json:"customer_id" validate:"required,gt=0"`
	ServiceID        int64   `json:"service_id" validate:"required,gt=0"`
	Date             string  `json:"date" validate:"required,datetime=2006-01-02"`
	Description      string  `json:"description" validate:"max=500"`
	HourlyRate       float64 `json:"hourly_rate" validate:"gte=75"`
	MaterialUpcharge float64 `json:"material_upcharge" validate:"gte=15,lte=75"`
	Tax              float64 `json:"tax" validate:"gte=0,lte=20"`
	Discount         float64 `json:"discount" validate:"gte=0,lte=100"`
	Callout          float64 `json:"callout" validate:"oneof=50 100"`
	Completed        bool    `json:"completed"`
	Notes            string  `json:"notes" validate:"max=1000"`
}

// WorkLogRequest records a span of time worked.
type WorkLogRequest struct {
	StartedAt time.Time `json:"started_at" validate:"required"`
	EndedAt   time.Time `json:"ended_at" validate:"required"`
}

// CostLineRequest adds a named charge.
type CostLineRequest struct {
	Name string  `json:"name" validate:"required,max=120"`
	Cost float64 `json:"cost" validate:"gte=0"`
}

// PaymentRequest records money received.
type PaymentRequest struct {
	Date   string  `json:"date" validate:"required,datetime=2006-01-02"`
	Kind   string  `json:"kind" validate:"required,oneof=cash check"`
	Amount float64 `json:"amount" validate:"gte=0"`
	Notes  string  `json:"notes" validate:"max=500"`
}

// EntryRequest posts a consumption ledger entry. Cost zero on a material
// entry means "snapshot the item's current unit cost for me".
type EntryRequest struct {
	ItemID         int64   `json:"item_id" validate:"required,gt=0"`
	Quantity       float64 `json:"quantity" validate:"gte=0"`
	QuantityBroken float64 `json:"quantity_broken" validate:"gte=0"`
	Cost           float64 `json:"cost" validate:"gte=0"`
	IdempotencyKey string  `json:"idempotency_key,omitempty" validate:"max=120"`
}

// Response is an order without derived values.
type Response struct {
	ID               int64     `json:"id"`
	CustomerID       int64     `json:"customer_id"`
	ServiceID        int64     `json:"service_id"`
	Date             string    `json:"date"`
	Description      string    `json:"description,omitempty"`
	HourlyRate       string    `json:"hourly_rate"`
	MaterialUpcharge string    `json:"material_upcharge"`
	Tax              string    `json:"tax"`
	Discount         string    `json:"discount"`
	Callout          string    `json:"callout"`
	Completed        bool      `json:"completed"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// WorkLogResponse is one work log span.
type WorkLogResponse struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Hours     float64   `json:"hours"`
}

// CostLineResponse is one named charge.
type CostLineResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Cost string `json:"cost"`
}

// PaymentResponse is one received payment.
type PaymentResponse struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Kind   string `json:"kind"`
	Amount string `json:"amount"`
	Notes  string `json:"notes,omitempty"`
}

// ConsumptionLineResponse is one consumption entry with its item.
type ConsumptionLineResponse struct {
	ID             int64   `json:"id"`
	ItemID         int64   `json:"item_id"`
	ItemKind       string  `json:"item_kind"`
	ItemName       string  `json:"item_name"`
	Quantity       float64 `json:"quantity"`
	QuantityBroken float64 `json:"quantity_broken"`
	Cost           string  `json:"cost"`
}

// PricingResponse is the derived cascade, rounded to two places at this
// boundary only.
type PricingResponse struct {
	HoursWorked   float64 `json:"hours_worked"`
	LaborTotal    string  `json:"labor_total"`
	MaterialTotal string  `json:"material_total"`
	LineTotal     string  `json:"line_total"`
	Subtotal      string  `json:"subtotal"`
	TaxTotal      string  `json:"tax_total"`
	DiscountTotal string  `json:"discount_total"`
	Total         string  `json:"total"`
	PaymentTotal  string  `json:"payment_total"`
	WorkingTotal  string  `json:"working_total"`
	Paid          bool    `json:"paid"`
}

// DetailResponse is the full order with children and derived pricing.
type DetailResponse struct {
	Response
	WorkLogs         []WorkLogResponse         `json:"work_logs"`
	CostLines        []CostLineResponse        `json:"cost_lines"`
	Payments         []PaymentResponse         `json:"payments"`
	ConsumptionLines []ConsumptionLineResponse `json:"consumption_lines"`
	Pricing          PricingResponse           `json:"pricing"`
}

func orderResponse(o Order) Response {
	return Response{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		ServiceID:        o.ServiceID,
		Date:             o.Date.Format("2006-01-02"),
		Description:      o.Description,
		HourlyRate:       o.HourlyRate.StringFixed(2),
		MaterialUpcharge: o.MaterialUpcharge.StringFixed(2),
		Tax:              o.Tax.StringFixed(2),
		Discount:         o.Discount.StringFixed(2),
		Callout:          o.Callout.StringFixed(2),
		Completed:        o.Completed,
		Notes:            o.Notes,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func pricingResponse(p Pricing) PricingResponse {
	return PricingResponse{
		HoursWorked:   p.HoursWorked,
		LaborTotal:    p.LaborTotal.StringFixed(2),
		MaterialTotal: p.MaterialTotal.StringFixed(2),
		LineTotal:     p.LineTotal.StringFixed(2),
		Subtotal:      p.Subtotal.StringFixed(2),
		TaxTotal:      p.TaxTotal.StringFixed(2),
		DiscountTotal: p.DiscountTotal.StringFixed(2),
		Total:         p.Total.StringFixed(2),
		PaymentTotal:  p.PaymentTotal.StringFixed(2),
		WorkingTotal:  p.WorkingTotal.StringFixed(2),
		Paid:          p.Paid,
	}
}

func detailResponse(d Detail) DetailResponse {
	resp := DetailResponse{
		Response:         orderResponse(d.Order),
		WorkLogs:         make([]WorkLogResponse, len(d.WorkLogs)),
		CostLines:        make([]CostLineResponse, len(d.CostLines)),
		Payments:         make([]PaymentResponse, len(d.Payments)),
		ConsumptionLines: make([]ConsumptionLineResponse, len(d.ConsumptionLines)),
		Pricing:          pricingResponse(d.Pricing),
	}
	for i, log := range d.WorkLogs {
		resp.WorkLogs[i] = WorkLogResponse{ID: log.ID, StartedAt: log.StartedAt, EndedAt: log.EndedAt, Hours: log.Hours()}
	}
	for i, line := range d.CostLines {
		resp.CostLines[i] = CostLineResponse{ID: line.ID, Name: line.Name, Cost: line.Cost.StringFixed(2)}
	}
	for i, pay := range d.Payments {
		resp.Payments[i] = PaymentResponse{
			ID:     pay.ID,
			Date:   pay.Date.Format("2006-01-02"),
			Kind:   string(pay.Kind),
			Amount: pay.Amount.StringFixed(2),
			Notes:  pay.Notes,
		}
	}
	for i, line := range d.ConsumptionLines {
		resp.ConsumptionLines[i] = ConsumptionLineResponse{
			ID:             line.Entry.ID,
			ItemID:         line.Entry.ItemID,
			ItemKind:       string(line.ItemKind),
			ItemName:       line.ItemName,
			Quantity:       line.Entry.Quantity,
			QuantityBroken: line.Entry.QuantityBroken,
			Cost:           line.Entry.Cost.StringFixed(2),
		}
	}
	return resp
}

func (r UpsertRequest) toInput() Input {
	date, _ := time.Parse("2006-01-02", r.Date)
	return Input{
		CustomerID:       r.CustomerID,
		ServiceID:        r.ServiceID,
		Date:             date,
		Description:      r.Description,
		HourlyRate:       decimal.NewFromFloat(r.HourlyRate),
		MaterialUpcharge: decimal.NewFromFloat(r.MaterialUpcharge),
		Tax:              decimal.NewFromFloat(r.Tax),
		Discount:         decimal.NewFromFloat(r.Discount),
		Callout:          decimal.NewFromFloat(r.Callout),
		Completed:        r.Completed,
		Notes:            r.Notes,
	}
}
