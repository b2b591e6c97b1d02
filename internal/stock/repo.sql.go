package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/platform/db"
	"github.com/fieldserve/fieldserve/internal/shared"
)

// Repository persists stock items and their ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the ledger operations that must share one
// transaction: the parent item row is locked first, then entries are
// written, so two concurrent ledger writes for the same item serialize.
type TxRepository interface {
	LockItem(ctx context.Context, itemID int64) error
	GetItem(ctx context.Context, itemID int64) (Item, error)
	LatestPurchaseEntry(ctx context.Context, itemID int64) (*PurchaseEntry, error)
	InsertPurchaseEntry(ctx context.Context, entry PurchaseEntry) (int64, error)
	GetPurchaseEntry(ctx context.Context, id int64) (PurchaseEntry, error)
	DeletePurchaseEntry(ctx context.Context, id int64) error
	InsertConsumptionEntry(ctx context.Context, entry ConsumptionEntry) (int64, error)
	GetConsumptionEntry(ctx context.Context, id int64) (ConsumptionEntry, error)
	DeleteConsumptionEntry(ctx context.Context, id int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// CreateItem inserts a stock item. The name+size business key for materials
// is enforced by a unique index.
func (r *Repository) CreateItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO stock_items (kind, name, size, brand, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id`,
		string(item.Kind), item.Name, item.Size, item.Brand, item.Description).Scan(&id)
	if err != nil {
		return 0, mapStockErr(err)
	}
	return id, nil
}

// GetItem fetches a stock item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT id, kind, name, size, brand, description, created_at, updated_at
FROM stock_items WHERE id=$1`, id))
}

// ListItems returns items of one kind (or all when kind is empty).
func (r *Repository) ListItems(ctx context.Context, kind ItemKind) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, kind, name, size, brand, description, created_at, updated_at
FROM stock_items WHERE ($1 = '' OR kind = $1) ORDER BY name, size`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem rewrites the descriptive fields under a row lock.
func (r *Repository) UpdateItem(ctx context.Context, id int64, item Item) error {
	return db.WithRowLock(ctx, r.pool, db.TableStockItems, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE stock_items SET name=$2, size=$3, brand=$4, description=$5, updated_at=NOW() WHERE id=$1`,
			id, item.Name, item.Size, item.Brand, item.Description)
		return mapStockErr(err)
	})
}

// DeleteItem removes the item under a row lock. Referencing ledger entries
// block the delete via their foreign keys; the history must be removed
// through the ledger surface first.
func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	return db.WithRowLock(ctx, r.pool, db.TableStockItems, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM stock_items WHERE id=$1`, id)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: item %d has ledger entries", shared.ErrRuleViolation, id)
		}
		return mapStockErr(err)
	})
}

// PurchasedQuantity sums purchased quantity across the item's ledger.
func (r *Repository) PurchasedQuantity(ctx context.Context, itemID int64) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity),0) FROM purchase_entries WHERE item_id=$1`, itemID).Scan(&sum)
	return sum, err
}

// ConsumedQuantity sums the consumption field applicable to the kind:
// quantity for materials, quantity_broken for tools.
func (r *Repository) ConsumedQuantity(ctx context.Context, itemID int64, kind ItemKind) (float64, error) {
	column := "quantity"
	if kind == ItemKindTool {
		column = "quantity_broken"
	}
	var sum float64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COALESCE(SUM(%s),0) FROM consumption_entries WHERE item_id=$1`, column), itemID).Scan(&sum)
	return sum, err
}

// LatestPurchaseEntry returns the purchase entry with the greatest id for
// the item, or nil when the item has none.
func (r *Repository) LatestPurchaseEntry(ctx context.Context, itemID int64) (*PurchaseEntry, error) {
	return latestPurchaseEntry(ctx, r.pool, itemID)
}

// ListPurchaseEntries returns the entries belonging to one purchase.
func (r *Repository) ListPurchaseEntries(ctx context.Context, purchaseID int64) ([]PurchaseEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_id, item_id, quantity, cost, created_at
FROM purchase_entries WHERE purchase_id=$1 ORDER BY id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []PurchaseEntry{}
	for rows.Next() {
		var e PurchaseEntry
		if err := rows.Scan(&e.ID, &e.PurchaseID, &e.ItemID, &e.Quantity, &e.Cost, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListConsumptionEntries returns the entries belonging to one order.
func (r *Repository) ListConsumptionEntries(ctx context.Context, orderID int64) ([]ConsumptionEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, item_id, quantity, quantity_broken, cost, created_at
FROM consumption_entries WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []ConsumptionEntry{}
	for rows.Next() {
		var e ConsumptionEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ItemID, &e.Quantity, &e.QuantityBroken, &e.Cost, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) LockItem(ctx context.Context, itemID int64) error {
	if err := db.LockRow(ctx, r.tx, db.TableStockItems, itemID); err != nil {
		if errors.Is(err, db.ErrRowMissing) {
			return fmt.Errorf("stock item %d: %w", itemID, shared.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r *txRepository) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return scanItem(r.tx.QueryRow(ctx, `SELECT id, kind, name, size, brand, description, created_at, updated_at
FROM stock_items WHERE id=$1`, itemID))
}

func (r *txRepository) LatestPurchaseEntry(ctx context.Context, itemID int64) (*PurchaseEntry, error) {
	return latestPurchaseEntry(ctx, r.tx, itemID)
}

func (r *txRepository) InsertPurchaseEntry(ctx context.Context, entry PurchaseEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_entries (purchase_id, item_id, quantity, cost, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id`,
		entry.PurchaseID, entry.ItemID, entry.Quantity, entry.Cost).Scan(&id)
	return id, mapStockErr(err)
}

func (r *txRepository) GetPurchaseEntry(ctx context.Context, id int64) (PurchaseEntry, error) {
	var e PurchaseEntry
	err := r.tx.QueryRow(ctx, `SELECT id, purchase_id, item_id, quantity, cost, created_at
FROM purchase_entries WHERE id=$1`, id).Scan(&e.ID, &e.PurchaseID, &e.ItemID, &e.Quantity, &e.Cost, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseEntry{}, shared.ErrNotFound
		}
		return PurchaseEntry{}, err
	}
	return e, nil
}

func (r *txRepository) DeletePurchaseEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchase_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertConsumptionEntry(ctx context.Context, entry ConsumptionEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO consumption_entries (order_id, item_id, quantity, quantity_broken, cost, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		entry.OrderID, entry.ItemID, entry.Quantity, entry.QuantityBroken, entry.Cost).Scan(&id)
	return id, mapStockErr(err)
}

func (r *txRepository) GetConsumptionEntry(ctx context.Context, id int64) (ConsumptionEntry, error) {
	var e ConsumptionEntry
	err := r.tx.QueryRow(ctx, `SELECT id, order_id, item_id, quantity, quantity_broken, cost, created_at
FROM consumption_entries WHERE id=$1`, id).Scan(&e.ID, &e.OrderID, &e.ItemID, &e.Quantity, &e.QuantityBroken, &e.Cost, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConsumptionEntry{}, shared.ErrNotFound
		}
		return ConsumptionEntry{}, err
	}
	return e, nil
}

func (r *txRepository) DeleteConsumptionEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM consumption_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var kind string
	err := row.Scan(&item.ID, &kind, &item.Name, &item.Size, &item.Brand, &item.Description, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	item.Kind = ItemKind(kind)
	return item, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func latestPurchaseEntry(ctx context.Context, q querier, itemID int64) (*PurchaseEntry, error) {
	var e PurchaseEntry
	err := q.QueryRow(ctx, `SELECT id, purchase_id, item_id, quantity, cost, created_at
FROM purchase_entries WHERE item_id=$1 ORDER BY id DESC LIMIT 1`, itemID).
		Scan(&e.ID, &e.PurchaseID, &e.ItemID, &e.Quantity, &e.Cost, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func mapStockErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", shared.ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", shared.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}
