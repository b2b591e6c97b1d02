package stock

import "time"

// CreateItemRequest registers a stock item.
type CreateItemRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=material tool"`
	Name        string `json:"name" validate:"required,max=120"`
	Size        string `json:"size" validate:"max=60"`
	Brand       string `json:"brand" validate:"max=120"`
	Description string `json:"description" validate:"max=500"`
}

// UpdateItemRequest rewrites descriptive fields; kind is immutable.
type UpdateItemRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Size        string `json:"size" validate:"max=60"`
	Brand       string `json:"brand" validate:"max=120"`
	Description string `json:"description" validate:"max=500"`
}

// ItemResponse is an item with its derived state. Unit cost is rounded to
// two places where it crosses this boundary.
type ItemResponse struct {
	ID                int64     `json:"id"`
	Kind              string    `json:"kind"`
	Name              string    `json:"name"`
	Size              string    `json:"size,omitempty"`
	Brand             string    `json:"brand,omitempty"`
	Description       string    `json:"description,omitempty"`
	AvailableQuantity float64   `json:"available_quantity"`
	UnitCost          string    `json:"unit_cost"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func itemResponse(item Item, state ItemState) ItemResponse {
	return ItemResponse{
		ID:                item.ID,
		Kind:              string(item.Kind),
		Name:              item.Name,
		Size:              item.Size,
		Brand:             item.Brand,
		Description:       item.Description,
		AvailableQuantity: state.AvailableQuantity,
		UnitCost:          state.UnitCost.StringFixed(2),
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}
