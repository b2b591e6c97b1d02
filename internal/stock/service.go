package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateItem(ctx context.Context, item Item) (int64, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, kind ItemKind) ([]Item, error)
	UpdateItem(ctx context.Context, id int64, item Item) error
	DeleteItem(ctx context.Context, id int64) error
	PurchasedQuantity(ctx context.Context, itemID int64) (float64, error)
	ConsumedQuantity(ctx context.Context, itemID int64, kind ItemKind) (float64, error)
	LatestPurchaseEntry(ctx context.Context, itemID int64) (*PurchaseEntry, error)
	ListPurchaseEntries(ctx context.Context, purchaseID int64) ([]PurchaseEntry, error)
	ListConsumptionEntries(ctx context.Context, orderID int64) ([]ConsumptionEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the stock ledger: item CRUD, derived reads, and the only two
// code paths that change an item's availability or cost basis.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem}
}

// ItemInput carries validated item fields from the CRUD surface.
type ItemInput struct {
	Kind        ItemKind
	Name        string
	Size        string
	Brand       string
	Description string
}

// PurchaseEntryInput describes a purchase ledger write.
type PurchaseEntryInput struct {
	PurchaseID     int64
	ItemID         int64
	Quantity       float64
	Cost           decimal.Decimal
	ActorID        int64
	IdempotencyKey string
}

// ConsumptionEntryInput describes a consumption ledger write. Cost is
// optional for materials; when zero it is snapshotted from the item's
// current unit cost.
type ConsumptionEntryInput struct {
	OrderID        int64
	ItemID         int64
	Quantity       float64
	QuantityBroken float64
	Cost           decimal.Decimal
	ActorID        int64
	IdempotencyKey string
}

// CreateItem registers a new stock item. It starts with no history:
// availability 0 and unit cost 0.00.
func (s *Service) CreateItem(ctx context.Context, input ItemInput) (Item, error) {
	if input.Kind != ItemKindMaterial && input.Kind != ItemKindTool {
		return Item{}, fmt.Errorf("%w: unknown item kind %q", shared.ErrValidation, input.Kind)
	}
	if input.Name == "" {
		return Item{}, fmt.Errorf("%w: item name required", shared.ErrValidation)
	}
	item := Item{Kind: input.Kind, Name: input.Name, Size: input.Size, Brand: input.Brand, Description: input.Description}
	id, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	return s.repo.GetItem(ctx, id)
}

// GetItem returns the item with its derived state.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, ItemState, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, ItemState{}, err
	}
	state, err := s.itemState(ctx, item)
	if err != nil {
		return Item{}, ItemState{}, err
	}
	return item, state, nil
}

// ListItems lists items of a kind together with their derived state.
func (s *Service) ListItems(ctx context.Context, kind ItemKind) ([]Item, []ItemState, error) {
	items, err := s.repo.ListItems(ctx, kind)
	if err != nil {
		return nil, nil, err
	}
	states := make([]ItemState, len(items))
	for i, item := range items {
		state, err := s.itemState(ctx, item)
		if err != nil {
			return nil, nil, err
		}
		states[i] = state
	}
	return items, states, nil
}

// UpdateItem rewrites descriptive fields. Kind is immutable: the ledger
// columns an item aggregates depend on it.
func (s *Service) UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error) {
	if input.Name == "" {
		return Item{}, fmt.Errorf("%w: item name required", shared.ErrValidation)
	}
	err := s.repo.UpdateItem(ctx, id, Item{Name: input.Name, Size: input.Size, Brand: input.Brand, Description: input.Description})
	if err != nil {
		return Item{}, err
	}
	return s.repo.GetItem(ctx, id)
}

// DeleteItem removes an item physically.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	return s.repo.DeleteItem(ctx, id)
}

// AvailableQuantity derives current availability for the item.
func (s *Service) AvailableQuantity(ctx context.Context, itemID int64) (float64, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	state, err := s.itemState(ctx, item)
	if err != nil {
		return 0, err
	}
	return state.AvailableQuantity, nil
}

// UnitCost derives the current last-cost unit cost for the item.
func (s *Service) UnitCost(ctx context.Context, itemID int64) (decimal.Decimal, error) {
	latest, err := s.repo.LatestPurchaseEntry(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	return UnitCost(latest), nil
}

// CreatePurchaseEntry posts a purchase ledger entry. The parent item row is
// locked for the duration of the write so concurrent ledger writes for the
// same item serialize.
func (s *Service) CreatePurchaseEntry(ctx context.Context, input PurchaseEntryInput) (PurchaseEntry, error) {
	if input.Quantity < 0 {
		return PurchaseEntry{}, ErrNegativeQuantity
	}
	if input.Cost.IsNegative() {
		return PurchaseEntry{}, ErrNegativeCost
	}
	release, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return PurchaseEntry{}, err
	}

	var entry PurchaseEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockItem(ctx, input.ItemID); err != nil {
			return err
		}
		entry = PurchaseEntry{
			PurchaseID: input.PurchaseID,
			ItemID:     input.ItemID,
			Quantity:   input.Quantity,
			Cost:       input.Cost,
		}
		id, err := tx.InsertPurchaseEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry, err = tx.GetPurchaseEntry(ctx, id)
		return err
	})
	if err != nil {
		release(ctx)
		return PurchaseEntry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "stock:purchase_entry:create", entry.ID, map[string]any{
		"purchase_id": entry.PurchaseID,
		"item_id":     entry.ItemID,
		"quantity":    entry.Quantity,
		"cost":        entry.Cost.String(),
	})
	return entry, nil
}

// DeletePurchaseEntry removes a purchase ledger entry; the next derived
// read reflects the removal immediately.
func (s *Service) DeletePurchaseEntry(ctx context.Context, id int64, actorID int64) (PurchaseEntry, error) {
	var entry PurchaseEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetPurchaseEntry(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.LockItem(ctx, entry.ItemID); err != nil {
			return err
		}
		return tx.DeletePurchaseEntry(ctx, id)
	})
	if err != nil {
		return PurchaseEntry{}, err
	}
	s.recordAudit(ctx, actorID, "stock:purchase_entry:delete", entry.ID, map[string]any{
		"purchase_id": entry.PurchaseID,
		"item_id":     entry.ItemID,
	})
	return entry, nil
}

// CreateConsumptionEntry posts a consumption ledger entry. For materials a
// zero cost is replaced by the item's unit cost times quantity, computed
// under the same item lock so a concurrent purchase cannot slip between the
// cost basis read and the write. The snapshot never changes afterwards.
func (s *Service) CreateConsumptionEntry(ctx context.Context, input ConsumptionEntryInput) (ConsumptionEntry, error) {
	if input.Quantity < 0 || input.QuantityBroken < 0 {
		return ConsumptionEntry{}, ErrNegativeQuantity
	}
	if input.Cost.IsNegative() {
		return ConsumptionEntry{}, ErrNegativeCost
	}
	release, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return ConsumptionEntry{}, err
	}

	var entry ConsumptionEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockItem(ctx, input.ItemID); err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if item.Kind == ItemKindMaterial && input.QuantityBroken != 0 {
			return fmt.Errorf("%w: materials have no broken quantity", ErrKindMismatch)
		}
		cost := input.Cost
		if item.Kind == ItemKindMaterial && cost.IsZero() {
			latest, err := tx.LatestPurchaseEntry(ctx, input.ItemID)
			if err != nil {
				return err
			}
			cost = UnitCost(latest).Mul(decimal.NewFromFloat(input.Quantity))
		}
		entry = ConsumptionEntry{
			OrderID:        input.OrderID,
			ItemID:         input.ItemID,
			Quantity:       input.Quantity,
			QuantityBroken: input.QuantityBroken,
			Cost:           cost,
		}
		id, err := tx.InsertConsumptionEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry, err = tx.GetConsumptionEntry(ctx, id)
		return err
	})
	if err != nil {
		release(ctx)
		return ConsumptionEntry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "stock:consumption_entry:create", entry.ID, map[string]any{
		"order_id":        entry.OrderID,
		"item_id":         entry.ItemID,
		"quantity":        entry.Quantity,
		"quantity_broken": entry.QuantityBroken,
		"cost":            entry.Cost.String(),
	})
	return entry, nil
}

// DeleteConsumptionEntry removes a consumption ledger entry, restoring the
// availability it consumed.
func (s *Service) DeleteConsumptionEntry(ctx context.Context, id int64, actorID int64) (ConsumptionEntry, error) {
	var entry ConsumptionEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetConsumptionEntry(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.LockItem(ctx, entry.ItemID); err != nil {
			return err
		}
		return tx.DeleteConsumptionEntry(ctx, id)
	})
	if err != nil {
		return ConsumptionEntry{}, err
	}
	s.recordAudit(ctx, actorID, "stock:consumption_entry:delete", entry.ID, map[string]any{
		"order_id": entry.OrderID,
		"item_id":  entry.ItemID,
	})
	return entry, nil
}

// ListPurchaseEntries lists ledger entries for one purchase document.
func (s *Service) ListPurchaseEntries(ctx context.Context, purchaseID int64) ([]PurchaseEntry, error) {
	return s.repo.ListPurchaseEntries(ctx, purchaseID)
}

// ListConsumptionEntries lists ledger entries for one order.
func (s *Service) ListConsumptionEntries(ctx context.Context, orderID int64) ([]ConsumptionEntry, error) {
	return s.repo.ListConsumptionEntries(ctx, orderID)
}

func (s *Service) itemState(ctx context.Context, item Item) (ItemState, error) {
	purchased, err := s.repo.PurchasedQuantity(ctx, item.ID)
	if err != nil {
		return ItemState{}, err
	}
	consumed, err := s.repo.ConsumedQuantity(ctx, item.ID, item.Kind)
	if err != nil {
		return ItemState{}, err
	}
	latest, err := s.repo.LatestPurchaseEntry(ctx, item.ID)
	if err != nil {
		return ItemState{}, err
	}
	return ItemState{
		AvailableQuantity: AvailableQuantity(purchased, consumed),
		UnitCost:          UnitCost(latest),
	}, nil
}

// claimKey inserts the idempotency key when one is supplied and returns a
// rollback func for the failure path.
func (s *Service) claimKey(ctx context.Context, key string) (func(context.Context), error) {
	if s.idempotency == nil || key == "" {
		return func(context.Context) {}, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, fmt.Errorf("%w: %s", shared.ErrDuplicate, key)
		}
		return nil, err
	}
	return func(ctx context.Context) { _ = s.idempotency.Delete(ctx, key) }, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_ledger",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
