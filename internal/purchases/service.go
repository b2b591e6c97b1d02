package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, p Purchase) (int64, error)
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, limit, offset int) ([]Purchase, error)
	Update(ctx context.Context, id int64, p Purchase) error
	Delete(ctx context.Context, id int64) error
	Lines(ctx context.Context, purchaseID int64) ([]Line, error)
	AddReceipt(ctx context.Context, receipt Receipt) error
	ListReceipts(ctx context.Context, purchaseID int64) ([]Receipt, error)
	DeleteReceipt(ctx context.Context, id uuid.UUID) error
}

// StockLedger is the stock service surface the purchase document needs:
// ledger entry writes happen there so item locking and audit stay in one
// place.
type StockLedger interface {
	CreatePurchaseEntry(ctx context.Context, input stock.PurchaseEntryInput) (stock.PurchaseEntry, error)
	DeletePurchaseEntry(ctx context.Context, id int64, actorID int64) (stock.PurchaseEntry, error)
}

// Service coordinates purchase documents and their derived totals.
type Service struct {
	repo   RepositoryPort
	ledger StockLedger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger StockLedger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Input carries validated purchase fields.
type Input struct {
	SupplierID      int64
	SupplierAddress string
	Tax             decimal.Decimal
	Date            time.Time
}

// EntryInput describes a ledger entry added through the purchase surface.
type EntryInput struct {
	ItemID         int64
	Quantity       float64
	Cost           decimal.Decimal
	ActorID        int64
	IdempotencyKey string
}

// Detail is a purchase with everything derived from its children.
type Detail struct {
	Purchase Purchase
	Lines    []Line
	Receipts []Receipt
	Totals   Totals
}

// Create records a new purchase document.
func (s *Service) Create(ctx context.Context, input Input) (Purchase, error) {
	if input.Tax.IsNegative() {
		return Purchase{}, fmt.Errorf("%w: tax must be >= 0", shared.ErrValidation)
	}
	id, err := s.repo.Create(ctx, Purchase{
		SupplierID:      input.SupplierID,
		SupplierAddress: input.SupplierAddress,
		Tax:             input.Tax,
		Date:            input.Date,
	})
	if err != nil {
		return Purchase{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get loads the purchase with lines, receipts, and totals recomputed from
// the live child collections.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	lines, err := s.repo.Lines(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	receipts, err := s.repo.ListReceipts(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		Purchase: p,
		Lines:    lines,
		Receipts: receipts,
		Totals:   ComputeTotals(p.Tax, lines),
	}, nil
}

// List returns purchase documents.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Purchase, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update rewrites document fields.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Purchase, error) {
	if input.Tax.IsNegative() {
		return Purchase{}, fmt.Errorf("%w: tax must be >= 0", shared.ErrValidation)
	}
	err := s.repo.Update(ctx, id, Purchase{
		SupplierID:      input.SupplierID,
		SupplierAddress: input.SupplierAddress,
		Tax:             input.Tax,
		Date:            input.Date,
	})
	if err != nil {
		return Purchase{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes the document and, via the schema, its children.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// AddEntry posts a ledger entry against this purchase.
func (s *Service) AddEntry(ctx context.Context, purchaseID int64, input EntryInput) (stock.PurchaseEntry, error) {
	if _, err := s.repo.Get(ctx, purchaseID); err != nil {
		return stock.PurchaseEntry{}, err
	}
	return s.ledger.CreatePurchaseEntry(ctx, stock.PurchaseEntryInput{
		PurchaseID:     purchaseID,
		ItemID:         input.ItemID,
		Quantity:       input.Quantity,
		Cost:           input.Cost,
		ActorID:        input.ActorID,
		IdempotencyKey: input.IdempotencyKey,
	})
}

// RemoveEntry deletes a ledger entry; totals and the item's derived state
// reflect it on the next read. The entry must belong to the addressed
// purchase.
func (s *Service) RemoveEntry(ctx context.Context, purchaseID, entryID, actorID int64) error {
	lines, err := s.repo.Lines(ctx, purchaseID)
	if err != nil {
		return err
	}
	owned := false
	for _, line := range lines {
		if line.Entry.ID == entryID {
			owned = true
			break
		}
	}
	if !owned {
		return fmt.Errorf("entry %d in purchase %d: %w", entryID, purchaseID, shared.ErrNotFound)
	}
	_, err = s.ledger.DeletePurchaseEntry(ctx, entryID, actorID)
	return err
}

// AddReceipt attaches an uploaded receipt image reference.
func (s *Service) AddReceipt(ctx context.Context, purchaseID int64, objectKey string) (Receipt, error) {
	if objectKey == "" {
		return Receipt{}, fmt.Errorf("%w: object key required", shared.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, purchaseID); err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{ID: uuid.New(), PurchaseID: purchaseID, ObjectKey: objectKey}
	if err := s.repo.AddReceipt(ctx, receipt); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// RemoveReceipt detaches a receipt image reference.
func (s *Service) RemoveReceipt(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteReceipt(ctx, id)
}
