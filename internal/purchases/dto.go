package purchases

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpsertRequest creates or rewrites a purchase document.
type UpsertRequest struct {
	SupplierID      int64   `json:"supplier_id" validate:"required,gt=0"`
	SupplierAddress string  `json:"supplier_address" validate:"max=300"`
	Tax             float64 `json:"tax" validate:"gte=0"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
}

// EntryRequest posts a purchase ledger entry. Quantity zero records a
// cost-only adjustment.
type EntryRequest struct {
	ItemID         int64   `json:"item_id" validate:"required,gt=0"`
	Quantity       float64 `json:"quantity" validate:"gte=0"`
	Cost           float64 `json:"cost" validate:"gte=0"`
	IdempotencyKey string  `json:"idempotency_key,omitempty" validate:"max=120"`
}

// ReceiptRequest attaches an uploaded receipt image reference.
type ReceiptRequest struct {
	ObjectKey string `json:"object_key" validate:"required,max=300"`
}

// Response is a purchase document without derived values.
type Response struct {
	ID              int64     `json:"id"`
	SupplierID      int64     `json:"supplier_id"`
	SupplierAddress string    `json:"supplier_address,omitempty"`
	Tax             string    `json:"tax"`
	Date            string    `json:"date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LineResponse is one ledger entry with its item.
type LineResponse struct {
	ID       int64   `json:"id"`
	ItemID   int64   `json:"item_id"`
	ItemKind string  `json:"item_kind"`
	ItemName string  `json:"item_name"`
	Quantity float64 `json:"quantity"`
	Cost     string  `json:"cost"`
}

// ReceiptResponse is one receipt image reference.
type ReceiptResponse struct {
	ID         string    `json:"id"`
	ObjectKey  string    `json:"object_key"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DetailResponse is the full document with totals derived on this read.
// Money is rounded to two places at this boundary only.
type DetailResponse struct {
	Response
	Lines         []LineResponse    `json:"lines"`
	Receipts      []ReceiptResponse `json:"receipts"`
	MaterialTotal string            `json:"material_total"`
	ToolTotal     string            `json:"tool_total"`
	Subtotal      string            `json:"subtotal"`
	Total         string            `json:"total"`
}

func purchaseResponse(p Purchase) Response {
	return Response{
		ID:              p.ID,
		SupplierID:      p.SupplierID,
		SupplierAddress: p.SupplierAddress,
		Tax:             p.Tax.StringFixed(2),
		Date:            p.Date.Format("2006-01-02"),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func detailResponse(d Detail) DetailResponse {
	resp := DetailResponse{
		Response:      purchaseResponse(d.Purchase),
		Lines:         make([]LineResponse, len(d.Lines)),
		Receipts:      make([]ReceiptResponse, len(d.Receipts)),
		MaterialTotal: d.Totals.MaterialTotal.StringFixed(2),
		ToolTotal:     d.Totals.ToolTotal.StringFixed(2),
		Subtotal:      d.Totals.Subtotal.StringFixed(2),
		Total:         d.Totals.Total.StringFixed(2),
	}
	for i, line := range d.Lines {
		resp.Lines[i] = LineResponse{
			ID:       line.Entry.ID,
			ItemID:   line.Entry.ItemID,
			ItemKind: string(line.ItemKind),
			ItemName: line.ItemName,
			Quantity: line.Entry.Quantity,
			Cost:     line.Entry.Cost.StringFixed(2),
		}
	}
	for i, rec := range d.Receipts {
		resp.Receipts[i] = ReceiptResponse{ID: rec.ID.String(), ObjectKey: rec.ObjectKey, UploadedAt: rec.UploadedAt}
	}
	return resp
}

func (r UpsertRequest) toInput() Input {
	date, _ := time.Parse("2006-01-02", r.Date)
	return Input{
		SupplierID:      r.SupplierID,
		SupplierAddress: r.SupplierAddress,
		Tax:             decimal.NewFromFloat(r.Tax),
		Date:            date,
	}
}
