package purchases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/platform/db"
	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// Repository persists purchase documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a purchase document.
func (r *Repository) Create(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO purchases (supplier_id, supplier_address, tax, date, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id`,
		p.SupplierID, p.SupplierAddress, p.Tax, p.Date).Scan(&id)
	return id, err
}

// Get fetches a purchase document.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := r.pool.QueryRow(ctx, `SELECT id, supplier_id, supplier_address, tax, date, created_at, updated_at
FROM purchases WHERE id=$1`, id).
		Scan(&p.ID, &p.SupplierID, &p.SupplierAddress, &p.Tax, &p.Date, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, shared.ErrNotFound
		}
		return Purchase{}, err
	}
	return p, nil
}

// List returns purchase documents, newest date first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Purchase, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, supplier_id, supplier_address, tax, date, created_at, updated_at
FROM purchases ORDER BY date DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	purchasesList := []Purchase{}
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.SupplierAddress, &p.Tax, &p.Date, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		purchasesList = append(purchasesList, p)
	}
	return purchasesList, rows.Err()
}

// Update rewrites the document fields under a row lock.
func (r *Repository) Update(ctx context.Context, id int64, p Purchase) error {
	return db.WithRowLock(ctx, r.pool, db.TablePurchases, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE purchases SET supplier_id=$2, supplier_address=$3, tax=$4, date=$5, updated_at=NOW() WHERE id=$1`,
			id, p.SupplierID, p.SupplierAddress, p.Tax, p.Date)
		return err
	})
}

// Delete removes the document under a row lock. Ledger entries and receipts
// cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithRowLock(ctx, r.pool, db.TablePurchases, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM purchases WHERE id=$1`, id)
		return err
	})
}

// Lines returns the purchase's ledger entries joined with item kind and
// name in a single indexed scan over the entry FK.
func (r *Repository) Lines(ctx context.Context, purchaseID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.purchase_id, e.item_id, e.quantity, e.cost, e.created_at, i.kind, i.name
FROM purchase_entries e JOIN stock_items i ON i.id = e.item_id
WHERE e.purchase_id=$1 ORDER BY e.id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var line Line
		var kind string
		if err := rows.Scan(&line.Entry.ID, &line.Entry.PurchaseID, &line.Entry.ItemID,
			&line.Entry.Quantity, &line.Entry.Cost, &line.Entry.CreatedAt, &kind, &line.ItemName); err != nil {
			return nil, err
		}
		line.ItemKind = stock.ItemKind(kind)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// AddReceipt attaches a receipt image reference.
func (r *Repository) AddReceipt(ctx context.Context, receipt Receipt) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO purchase_receipts (id, purchase_id, object_key, uploaded_at)
VALUES ($1,$2,$3,NOW())`, receipt.ID, receipt.PurchaseID, receipt.ObjectKey)
	return err
}

// ListReceipts returns the receipt references for a purchase.
func (r *Repository) ListReceipts(ctx context.Context, purchaseID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_id, object_key, uploaded_at
FROM purchase_receipts WHERE purchase_id=$1 ORDER BY uploaded_at`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	receipts := []Receipt{}
	for rows.Next() {
		var rec Receipt
		if err := rows.Scan(&rec.ID, &rec.PurchaseID, &rec.ObjectKey, &rec.UploadedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}

// DeleteReceipt removes a receipt reference.
func (r *Repository) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_receipts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
