package stock

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/shared"
)

type memoryRepo struct {
	items    map[int64]Item
	pEntries map[int64]PurchaseEntry
	cEntries map[int64]ConsumptionEntry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:    make(map[int64]Item),
		pEntries: make(map[int64]PurchaseEntry),
		cEntries: make(map[int64]ConsumptionEntry),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) CreateItem(ctx context.Context, item Item) (int64, error) {
	item.ID = r.id()
	r.items[item.ID] = item
	return item.ID, nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, kind ItemKind) ([]Item, error) {
	var items []Item
	for _, item := range r.items {
		if kind == "" || item.Kind == kind {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, id int64, item Item) error {
	existing, ok := r.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
	}
	existing.Name = item.Name
	existing.Size = item.Size
	existing.Brand = item.Brand
	existing.Description = item.Description
	r.items[id] = existing
	return nil
}

func (r *memoryRepo) DeleteItem(ctx context.Context, id int64) error {
	for _, e := range r.pEntries {
		if e.ItemID == id {
			return fmt.Errorf("%w: item %d has ledger entries", shared.ErrRuleViolation, id)
		}
	}
	for _, e := range r.cEntries {
		if e.ItemID == id {
			return fmt.Errorf("%w: item %d has ledger entries", shared.ErrRuleViolation, id)
		}
	}
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) PurchasedQuantity(ctx context.Context, itemID int64) (float64, error) {
	total := 0.0
	for _, e := range r.pEntries {
		if e.ItemID == itemID {
			total += e.Quantity
		}
	}
	return total, nil
}

func (r *memoryRepo) ConsumedQuantity(ctx context.Context, itemID int64, kind ItemKind) (float64, error) {
	total := 0.0
	for _, e := range r.cEntries {
		if e.ItemID == itemID {
			total += e.Consumed(kind)
		}
	}
	return total, nil
}

func (r *memoryRepo) LatestPurchaseEntry(ctx context.Context, itemID int64) (*PurchaseEntry, error) {
	var latest *PurchaseEntry
	for id := range r.pEntries {
		e := r.pEntries[id]
		if e.ItemID != itemID {
			continue
		}
		if latest == nil || e.ID > latest.ID {
			latest = &e
		}
	}
	return latest, nil
}

func (r *memoryRepo) ListPurchaseEntries(ctx context.Context, purchaseID int64) ([]PurchaseEntry, error) {
	var entries []PurchaseEntry
	for _, e := range r.pEntries {
		if e.PurchaseID == purchaseID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (r *memoryRepo) ListConsumptionEntries(ctx context.Context, orderID int64) ([]ConsumptionEntry, error) {
	var entries []ConsumptionEntry
	for _, e := range r.cEntries {
		if e.OrderID == orderID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (tx *memoryTx) LockItem(ctx context.Context, itemID int64) error {
	if _, ok := tx.repo.items[itemID]; !ok {
		return fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return nil
}

func (tx *memoryTx) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return tx.repo.GetItem(ctx, itemID)
}

func (tx *memoryTx) LatestPurchaseEntry(ctx context.Context, itemID int64) (*PurchaseEntry, error) {
	return tx.repo.LatestPurchaseEntry(ctx, itemID)
}

func (tx *memoryTx) InsertPurchaseEntry(ctx context.Context, entry PurchaseEntry) (int64, error) {
	entry.ID = tx.repo.id()
	tx.repo.pEntries[entry.ID] = entry
	return entry.ID, nil
}

func (tx *memoryTx) GetPurchaseEntry(ctx context.Context, id int64) (PurchaseEntry, error) {
	e, ok := tx.repo.pEntries[id]
	if !ok {
		return PurchaseEntry{}, fmt.Errorf("purchase entry %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (tx *memoryTx) DeletePurchaseEntry(ctx context.Context, id int64) error {
	delete(tx.repo.pEntries, id)
	return nil
}

func (tx *memoryTx) InsertConsumptionEntry(ctx context.Context, entry ConsumptionEntry) (int64, error) {
	entry.ID = tx.repo.id()
	tx.repo.cEntries[entry.ID] = entry
	return entry.ID, nil
}

func (tx *memoryTx) GetConsumptionEntry(ctx context.Context, id int64) (ConsumptionEntry, error) {
	e, ok := tx.repo.cEntries[id]
	if !ok {
		return ConsumptionEntry{}, fmt.Errorf("consumption entry %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (tx *memoryTx) DeleteConsumptionEntry(ctx context.Context, id int64) error {
	delete(tx.repo.cEntries, id)
	return nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, nil, nil), repo
}

func mustCreateItem(t *testing.T, svc *Service, kind ItemKind, name string) Item {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), ItemInput{Kind: kind, Name: name})
	require.NoError(t, err)
	return item
}

func TestNewItemHasNoHistory(t *testing.T) {
	svc, _ := newTestService()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	_, state, err := svc.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Zero(t, state.AvailableQuantity)
	require.Equal(t, "0.00", state.UnitCost.StringFixed(2))
}

func TestUnitCostFollowsLatestPurchase(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	_, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 10, Cost: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	cost, err := svc.UnitCost(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "10.00", cost.StringFixed(2))

	// Last-cost policy: the newer entry wins even at a worse rate, and the
	// earlier entry's rate is forgotten.
	_, err = svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 5, Cost: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	cost, err = svc.UnitCost(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "20.00", cost.StringFixed(2))

	qty, err := svc.AvailableQuantity(ctx, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 15.0, qty, 0.0001)
}

func TestZeroQuantityPurchaseZeroesUnitCost(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Sealant")

	_, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 8, Cost: decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	// A cost-only adjustment becomes the latest entry; with zero quantity
	// the unit cost falls back to 0.00 rather than keeping 5.00.
	_, err = svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 0, Cost: decimal.NewFromInt(12),
	})
	require.NoError(t, err)

	cost, err := svc.UnitCost(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "0.00", cost.StringFixed(2))
}

func TestAvailabilityClampsAtZero(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "PVC Elbow")

	_, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 3, Cost: decimal.NewFromInt(9),
	})
	require.NoError(t, err)

	// Consumption entered ahead of its purchase paperwork.
	_, err = svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{
		OrderID: 1, ItemID: item.ID, Quantity: 10, Cost: decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	qty, err := svc.AvailableQuantity(ctx, item.ID)
	require.NoError(t, err)
	require.Zero(t, qty)
}

func TestToolAvailabilityOnlyDropsWhenBroken(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	tool := mustCreateItem(t, svc, ItemKindTool, "Pipe Wrench")

	_, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: tool.ID, Quantity: 2, Cost: decimal.NewFromInt(90),
	})
	require.NoError(t, err)

	// Using a tool on a job does not consume it.
	_, err = svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{
		OrderID: 1, ItemID: tool.ID, Quantity: 2,
	})
	require.NoError(t, err)

	qty, err := svc.AvailableQuantity(ctx, tool.ID)
	require.NoError(t, err)
	require.InDelta(t, 2.0, qty, 0.0001)

	// Breaking one does.
	_, err = svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{
		OrderID: 1, ItemID: tool.ID, Quantity: 1, QuantityBroken: 1,
	})
	require.NoError(t, err)

	qty, err = svc.AvailableQuantity(ctx, tool.ID)
	require.NoError(t, err)
	require.InDelta(t, 1.0, qty, 0.0001)
}

func TestMaterialRejectsBrokenQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	_, err := svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{
		OrderID: 1, ItemID: item.ID, Quantity: 1, QuantityBroken: 1,
	})
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestConsumptionCostSnapshot(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	_, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 10, Cost: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	entry, err := svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{
		OrderID: 1, ItemID: item.ID, Quantity: 3,
	})
	require.NoError(t, err)
	require.Equal(t, "30.00", entry.Cost.StringFixed(2))

	// A later purchase moves the unit cost but not the stored snapshot.
	_, err = svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 5, Cost: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	entries, err := svc.ListConsumptionEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "30.00", entries[0].Cost.StringFixed(2))
}

func TestExplicitConsumptionCostKept(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	_, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 10, Cost: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	entry, err := svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{
		OrderID: 1, ItemID: item.ID, Quantity: 3, Cost: decimal.NewFromFloat(55.68),
	})
	require.NoError(t, err)
	require.Equal(t, "55.68", entry.Cost.StringFixed(2))
}

func TestDeleteEntriesRestoresDerivedState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	pe, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 10, Cost: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	ce, err := svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{
		OrderID: 1, ItemID: item.ID, Quantity: 4,
	})
	require.NoError(t, err)

	qty, err := svc.AvailableQuantity(ctx, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 6.0, qty, 0.0001)

	_, err = svc.DeleteConsumptionEntry(ctx, ce.ID, 0)
	require.NoError(t, err)

	qty, err = svc.AvailableQuantity(ctx, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, qty, 0.0001)

	_, err = svc.DeletePurchaseEntry(ctx, pe.ID, 0)
	require.NoError(t, err)

	_, state, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Zero(t, state.AvailableQuantity)
	require.Equal(t, "0.00", state.UnitCost.StringFixed(2))
}

func TestNegativeInputsRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	_, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{PurchaseID: 1, ItemID: item.ID, Quantity: -1})
	require.ErrorIs(t, err, ErrNegativeQuantity)

	_, err = svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{PurchaseID: 1, ItemID: item.ID, Quantity: 1, Cost: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, ErrNegativeCost)

	_, err = svc.CreateConsumptionEntry(ctx, ConsumptionEntryInput{OrderID: 1, ItemID: item.ID, QuantityBroken: -1})
	require.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestDeleteItemBlockedByLedgerHistory(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindMaterial, "Copper Pipe")

	pe, err := svc.CreatePurchaseEntry(ctx, PurchaseEntryInput{
		PurchaseID: 1, ItemID: item.ID, Quantity: 10, Cost: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// The item cannot disappear under its ledger history; that would
	// silently rewrite purchase and order totals.
	err = svc.DeleteItem(ctx, item.ID)
	require.ErrorIs(t, err, shared.ErrRuleViolation)
	require.Contains(t, repo.pEntries, pe.ID)

	qty, err := svc.AvailableQuantity(ctx, item.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, qty, 0.0001)

	_, err = svc.DeletePurchaseEntry(ctx, pe.ID, 0)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteItem(ctx, item.ID))
}

func TestKindImmutableOnUpdate(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	item := mustCreateItem(t, svc, ItemKindTool, "Drain Auger")

	_, err := svc.UpdateItem(ctx, item.ID, ItemInput{Kind: ItemKindMaterial, Name: "Drain Auger", Size: "25 ft"})
	require.NoError(t, err)
	require.Equal(t, ItemKindTool, repo.items[item.ID].Kind)
}
