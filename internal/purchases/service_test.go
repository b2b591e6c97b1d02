package purchases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

type memoryRepo struct {
	purchases map[int64]Purchase
	lines     map[int64][]Line
	receipts  map[uuid.UUID]Receipt
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		purchases: make(map[int64]Purchase),
		lines:     make(map[int64][]Line),
		receipts:  make(map[uuid.UUID]Receipt),
	}
}

func (r *memoryRepo) Create(ctx context.Context, p Purchase) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	r.purchases[p.ID] = p
	return p.ID, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Purchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return Purchase{}, fmt.Errorf("purchase %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]Purchase, error) {
	var out []Purchase
	for _, p := range r.purchases {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, p Purchase) error {
	if _, ok := r.purchases[id]; !ok {
		return fmt.Errorf("purchase %d: %w", id, shared.ErrNotFound)
	}
	p.ID = id
	r.purchases[id] = p
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(r.purchases, id)
	delete(r.lines, id)
	return nil
}

func (r *memoryRepo) Lines(ctx context.Context, purchaseID int64) ([]Line, error) {
	return r.lines[purchaseID], nil
}

func (r *memoryRepo) AddReceipt(ctx context.Context, receipt Receipt) error {
	r.receipts[receipt.ID] = receipt
	return nil
}

func (r *memoryRepo) ListReceipts(ctx context.Context, purchaseID int64) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range r.receipts {
		if rec.PurchaseID == purchaseID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	delete(r.receipts, id)
	return nil
}

type memoryLedger struct {
	repo    *memoryRepo
	entries map[int64]stock.PurchaseEntry
	nextID  int64
}

func newMemoryLedger(repo *memoryRepo) *memoryLedger {
	return &memoryLedger{repo: repo, entries: make(map[int64]stock.PurchaseEntry)}
}

func (l *memoryLedger) CreatePurchaseEntry(ctx context.Context, input stock.PurchaseEntryInput) (stock.PurchaseEntry, error) {
	l.nextID++
	entry := stock.PurchaseEntry{
		ID:         l.nextID,
		PurchaseID: input.PurchaseID,
		ItemID:     input.ItemID,
		Quantity:   input.Quantity,
		Cost:       input.Cost,
	}
	l.entries[entry.ID] = entry
	l.repo.lines[input.PurchaseID] = append(l.repo.lines[input.PurchaseID], Line{Entry: entry, ItemKind: stock.ItemKindMaterial})
	return entry, nil
}

func (l *memoryLedger) DeletePurchaseEntry(ctx context.Context, id int64, actorID int64) (stock.PurchaseEntry, error) {
	entry, ok := l.entries[id]
	if !ok {
		return stock.PurchaseEntry{}, fmt.Errorf("purchase entry %d: %w", id, shared.ErrNotFound)
	}
	delete(l.entries, id)
	lines := l.repo.lines[entry.PurchaseID]
	for i, line := range lines {
		if line.Entry.ID == id {
			l.repo.lines[entry.PurchaseID] = append(lines[:i], lines[i+1:]...)
			break
		}
	}
	return entry, nil
}

func newTestService() (*Service, *memoryRepo, *memoryLedger) {
	repo := newMemoryRepo()
	ledger := newMemoryLedger(repo)
	return NewService(repo, ledger), repo, ledger
}

func materialLine(cost float64) Line {
	return Line{
		Entry:    stock.PurchaseEntry{Cost: decimal.NewFromFloat(cost)},
		ItemKind: stock.ItemKindMaterial,
	}
}

func toolLine(cost float64) Line {
	return Line{
		Entry:    stock.PurchaseEntry{Cost: decimal.NewFromFloat(cost)},
		ItemKind: stock.ItemKindTool,
	}
}

func TestComputeTotalsSplitsByKind(t *testing.T) {
	tax := decimal.NewFromFloat(6.83)
	lines := []Line{materialLine(100), materialLine(40), toolLine(90)}

	totals := ComputeTotals(tax, lines)
	require.Equal(t, "140.00", totals.MaterialTotal.StringFixed(2))
	require.Equal(t, "90.00", totals.ToolTotal.StringFixed(2))
	require.Equal(t, "230.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "236.83", totals.Total.StringFixed(2))
}

func TestComputeTotalsEmptyPurchase(t *testing.T) {
	tax := decimal.NewFromFloat(6.83)

	totals := ComputeTotals(tax, nil)
	require.True(t, totals.Subtotal.IsZero())
	require.Equal(t, "6.83", totals.Total.StringFixed(2))
}

func TestCreateRejectsNegativeTax(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), Input{SupplierID: 1, Tax: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetDerivesTotalsFromLines(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, Input{SupplierID: 1, Tax: decimal.NewFromFloat(6.83), Date: time.Now().UTC()})
	require.NoError(t, err)

	_, err = svc.AddEntry(ctx, p.ID, EntryInput{ItemID: 1, Quantity: 10, Cost: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = svc.AddEntry(ctx, p.ID, EntryInput{ItemID: 2, Quantity: 40, Cost: decimal.NewFromInt(40)})
	require.NoError(t, err)

	detail, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 2)
	require.Equal(t, "140.00", detail.Totals.Subtotal.StringFixed(2))
	require.Equal(t, "146.83", detail.Totals.Total.StringFixed(2))
}

func TestAddEntryUnknownPurchase(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.AddEntry(context.Background(), 99, EntryInput{ItemID: 1, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRemoveEntryChecksOwnership(t *testing.T) {
	svc, _, ledger := newTestService()
	ctx := context.Background()

	p1, err := svc.Create(ctx, Input{SupplierID: 1})
	require.NoError(t, err)
	p2, err := svc.Create(ctx, Input{SupplierID: 1})
	require.NoError(t, err)

	entry, err := svc.AddEntry(ctx, p1.ID, EntryInput{ItemID: 1, Quantity: 2, Cost: decimal.NewFromInt(10)})
	require.NoError(t, err)

	// Addressing the entry through the wrong purchase must not delete it.
	err = svc.RemoveEntry(ctx, p2.ID, entry.ID, 0)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, ledger.entries, entry.ID)

	err = svc.RemoveEntry(ctx, p1.ID, entry.ID, 0)
	require.NoError(t, err)
	require.NotContains(t, ledger.entries, entry.ID)
}

func TestReceiptLifecycle(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Create(ctx, Input{SupplierID: 1})
	require.NoError(t, err)

	_, err = svc.AddReceipt(ctx, p.ID, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	receipt, err := svc.AddReceipt(ctx, p.ID, "receipts/2025/03/abc.jpg")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, receipt.ID)

	detail, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Receipts, 1)

	require.NoError(t, svc.RemoveReceipt(ctx, receipt.ID))
	require.Empty(t, repo.receipts)
}
