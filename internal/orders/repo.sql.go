package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/platform/db"
	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// Repository persists orders and their child collections in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an order.
func (r *Repository) Create(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO orders
(customer_id, service_id, date, description, hourly_rate, material_upcharge, tax, discount, callout, completed, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW()) RETURNING id`,
		o.CustomerID, o.ServiceID, o.Date, o.Description, o.HourlyRate, o.MaterialUpcharge,
		o.Tax, o.Discount, o.Callout, o.Completed, o.Notes).Scan(&id)
	return id, err
}

// Get fetches an order.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `SELECT id, customer_id, service_id, date, description, hourly_rate, material_upcharge, tax, discount, callout, completed, notes, created_at, updated_at
FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.CustomerID, &o.ServiceID, &o.Date, &o.Description, &o.HourlyRate, &o.MaterialUpcharge,
			&o.Tax, &o.Discount, &o.Callout, &o.Completed, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// List returns orders, newest date first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, service_id, date, description, hourly_rate, material_upcharge, tax, discount, callout, completed, notes, created_at, updated_at
FROM orders ORDER BY date DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.ServiceID, &o.Date, &o.Description, &o.HourlyRate, &o.MaterialUpcharge,
			&o.Tax, &o.Discount, &o.Callout, &o.Completed, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Update rewrites order fields under a row lock.
func (r *Repository) Update(ctx context.Context, id int64, o Order) error {
	return db.WithRowLock(ctx, r.pool, db.TableOrders, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE orders SET customer_id=$2, service_id=$3, date=$4, description=$5, hourly_rate=$6,
material_upcharge=$7, tax=$8, discount=$9, callout=$10, completed=$11, notes=$12, updated_at=NOW() WHERE id=$1`,
			id, o.CustomerID, o.ServiceID, o.Date, o.Description, o.HourlyRate,
			o.MaterialUpcharge, o.Tax, o.Discount, o.Callout, o.Completed, o.Notes)
		return err
	})
}

// Delete removes the order under a row lock. Children cascade at the
// schema level.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithRowLock(ctx, r.pool, db.TableOrders, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
		return err
	})
}

// InsertWorkLog adds a work log row.
func (r *Repository) InsertWorkLog(ctx context.Context, log WorkLog) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO order_work_logs (order_id, started_at, ended_at)
VALUES ($1,$2,$3) RETURNING id`, log.OrderID, log.StartedAt, log.EndedAt).Scan(&id)
	return id, err
}

// UpdateWorkLog rewrites a work log under a row lock.
func (r *Repository) UpdateWorkLog(ctx context.Context, id int64, log WorkLog) error {
	return db.WithRowLock(ctx, r.pool, db.TableOrderWorkLogs, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE order_work_logs SET started_at=$2, ended_at=$3 WHERE id=$1`,
			id, log.StartedAt, log.EndedAt)
		return err
	})
}

// DeleteWorkLog removes a work log under a row lock.
func (r *Repository) DeleteWorkLog(ctx context.Context, id int64) error {
	return db.WithRowLock(ctx, r.pool, db.TableOrderWorkLogs, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM order_work_logs WHERE id=$1`, id)
		return err
	})
}

// ListWorkLogs returns the order's work logs.
func (r *Repository) ListWorkLogs(ctx context.Context, orderID int64) ([]WorkLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, started_at, ended_at
FROM order_work_logs WHERE order_id=$1 ORDER BY started_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := []WorkLog{}
	for rows.Next() {
		var log WorkLog
		if err := rows.Scan(&log.ID, &log.OrderID, &log.StartedAt, &log.EndedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// InsertCostLine adds a named charge.
func (r *Repository) InsertCostLine(ctx context.Context, line CostLine) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO order_costs (order_id, name, cost)
VALUES ($1,$2,$3) RETURNING id`, line.OrderID, line.Name, line.Cost).Scan(&id)
	return id, err
}

// DeleteCostLine removes a named charge under a row lock.
func (r *Repository) DeleteCostLine(ctx context.Context, id int64) error {
	return db.WithRowLock(ctx, r.pool, db.TableOrderCosts, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM order_costs WHERE id=$1`, id)
		return err
	})
}

// ListCostLines returns the order's named charges.
func (r *Repository) ListCostLines(ctx context.Context, orderID int64) ([]CostLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, name, cost
FROM order_costs WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []CostLine{}
	for rows.Next() {
		var line CostLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.Name, &line.Cost); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// InsertPayment adds a payment row.
func (r *Repository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO order_payments (order_id, date, kind, amount, notes)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		payment.OrderID, payment.Date, string(payment.Kind), payment.Amount, payment.Notes).Scan(&id)
	return id, err
}

// DeletePayment removes a payment under a row lock.
func (r *Repository) DeletePayment(ctx context.Context, id int64) error {
	return db.WithRowLock(ctx, r.pool, db.TableOrderPayments, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM order_payments WHERE id=$1`, id)
		return err
	})
}

// ListPayments returns the order's payments.
func (r *Repository) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, date, kind, amount, notes
FROM order_payments WHERE order_id=$1 ORDER BY date, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []Payment{}
	for rows.Next() {
		var p Payment
		var kind string
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Date, &kind, &p.Amount, &p.Notes); err != nil {
			return nil, err
		}
		p.Kind = PaymentKind(kind)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ConsumptionLines returns the order's ledger entries joined with item kind
// and name.
func (r *Repository) ConsumptionLines(ctx context.Context, orderID int64) ([]ConsumptionLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.order_id, e.item_id, e.quantity, e.quantity_broken, e.cost, e.created_at, i.kind, i.name
FROM consumption_entries e JOIN stock_items i ON i.id = e.item_id
WHERE e.order_id=$1 ORDER BY e.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []ConsumptionLine{}
	for rows.Next() {
		var line ConsumptionLine
		var kind string
		if err := rows.Scan(&line.Entry.ID, &line.Entry.OrderID, &line.Entry.ItemID, &line.Entry.Quantity,
			&line.Entry.QuantityBroken, &line.Entry.Cost, &line.Entry.CreatedAt, &kind, &line.ItemName); err != nil {
			return nil, err
		}
		line.ItemKind = stock.ItemKind(kind)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
