package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRowMissing indicates the row to be locked does not exist.
var ErrRowMissing = errors.New("platform/db: row not found")

// ErrLockContention indicates the write lost to a concurrent transaction
// and may be retried by the caller.
var ErrLockContention = errors.New("platform/db: lock contention")

// Table names accepted by the row-lock helpers. Restricting the set keeps
// identifiers out of reach of request input.
const (
	TableCustomers          = "customers"
	TableSuppliers          = "suppliers"
	TableServices           = "services"
	TableStockItems         = "stock_items"
	TablePurchases          = "purchases"
	TablePurchaseEntries    = "purchase_entries"
	TablePurchaseReceipts   = "purchase_receipts"
	TableOrders             = "orders"
	TableOrderWorkLogs      = "order_work_logs"
	TableOrderCosts         = "order_costs"
	TableOrderPayments      = "order_payments"
	TableConsumptionEntries = "consumption_entries"
)

var lockableTables = map[string]struct{}{
	TableCustomers:          {},
	TableSuppliers:          {},
	TableServices:           {},
	TableStockItems:         {},
	TablePurchases:          {},
	TablePurchaseEntries:    {},
	TablePurchaseReceipts:   {},
	TableOrders:             {},
	TableOrderWorkLogs:      {},
	TableOrderCosts:         {},
	TableOrderPayments:      {},
	TableConsumptionEntries: {},
}

// LockRow acquires an exclusive row lock inside an existing transaction by
// selecting the row FOR UPDATE. Callers use it to serialize sibling writes
// against a shared parent row (e.g. a stock item receiving ledger entries).
func LockRow(ctx context.Context, tx pgx.Tx, table string, id int64) error {
	if _, ok := lockableTables[table]; !ok {
		return fmt.Errorf("platform/db: table %q is not lockable", table)
	}
	var locked int64
	err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id=$1 FOR UPDATE`, table), id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRowMissing
		}
		return mapLockErr(err)
	}
	return nil
}

// WithRowLock runs fn inside a RepeatableRead transaction holding an
// exclusive lock on the identified row. When id is zero the record does not
// exist yet, nothing can be lost to a concurrent writer, and no lock is
// taken; fn still runs transactionally.
func WithRowLock(ctx context.Context, pool *pgxpool.Pool, table string, id int64, fn func(pgx.Tx) error) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		if id != 0 {
			if err := LockRow(ctx, tx, table, id); err != nil {
				return err
			}
		}
		if err := fn(tx); err != nil {
			return mapLockErr(err)
		}
		return nil
	})
}

// mapLockErr translates serialization and deadlock failures into
// ErrLockContention so callers can surface a generic retryable error.
func mapLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ErrLockContention, pgErr.Code)
		}
	}
	return err
}
