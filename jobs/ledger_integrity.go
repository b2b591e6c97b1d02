package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// IntegrityScanner runs the read-only ledger consistency scan. It reports
// findings through the log and never writes: derived quantities stay
// derived, so a deficit here is a data-entry problem for a human, not
// something to patch in place.
type IntegrityScanner struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewIntegrityScanner constructs the scanner.
func NewIntegrityScanner(pool *pgxpool.Pool, logger *slog.Logger) *IntegrityScanner {
	return &IntegrityScanner{pool: pool, logger: logger}
}

// Deficit is an item whose raw consumption exceeds what was ever purchased.
// Reads clamp these to zero availability; the scan surfaces them.
type Deficit struct {
	ItemID    int64
	Kind      string
	Name      string
	Purchased float64
	Consumed  float64
}

// Handle processes TaskLedgerIntegrityScan tasks.
func (s *IntegrityScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	var (
		materialDeficits []Deficit
		toolDeficits     []Deficit
		orphans          int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		materialDeficits, err = s.deficits(gctx, "material")
		return err
	})
	g.Go(func() error {
		var err error
		toolDeficits, err = s.deficits(gctx, "tool")
		return err
	})
	g.Go(func() error {
		var err error
		orphans, err = s.orphanEntries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, d := range append(materialDeficits, toolDeficits...) {
		s.logger.Warn("ledger deficit",
			slog.Int64("item_id", d.ItemID),
			slog.String("kind", d.Kind),
			slog.String("name", d.Name),
			slog.Float64("purchased", d.Purchased),
			slog.Float64("consumed", d.Consumed),
		)
	}
	if orphans > 0 {
		s.logger.Warn("orphaned ledger entries", slog.Int64("count", orphans))
	}
	s.logger.Info("ledger integrity scan complete",
		slog.Int("deficits", len(materialDeficits)+len(toolDeficits)),
		slog.Int64("orphans", orphans),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// deficits finds items of one kind whose consumption outruns purchases.
// Tools consume availability through quantity_broken only.
func (s *IntegrityScanner) deficits(ctx context.Context, kind string) ([]Deficit, error) {
	consumedExpr := `COALESCE(SUM(c.quantity), 0)`
	if kind == "tool" {
		consumedExpr = `COALESCE(SUM(c.quantity_broken), 0)`
	}
	query := `
		SELECT i.id, i.kind, i.name,
			COALESCE((SELECT SUM(p.quantity) FROM purchase_entries p WHERE p.item_id = i.id), 0) AS purchased,
			` + consumedExpr + ` AS consumed
		FROM stock_items i
		LEFT JOIN consumption_entries c ON c.item_id = i.id
		WHERE i.kind = $1
		GROUP BY i.id, i.kind, i.name
		HAVING ` + consumedExpr + ` > COALESCE((SELECT SUM(p.quantity) FROM purchase_entries p WHERE p.item_id = i.id), 0)`

	rows, err := s.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deficits []Deficit
	for rows.Next() {
		var d Deficit
		if err := rows.Scan(&d.ItemID, &d.Kind, &d.Name, &d.Purchased, &d.Consumed); err != nil {
			return nil, err
		}
		deficits = append(deficits, d)
	}
	return deficits, rows.Err()
}

// orphanEntries counts ledger entries whose parent document is gone. The
// schema cascades deletes, so a nonzero count means rows were written
// outside the application path.
func (s *IntegrityScanner) orphanEntries(ctx context.Context) (int64, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM purchase_entries p LEFT JOIN purchases d ON d.id = p.purchase_id WHERE d.id IS NULL)
			+ (SELECT COUNT(*) FROM consumption_entries c LEFT JOIN orders o ON o.id = c.order_id WHERE o.id IS NULL)`
	var count int64
	err := s.pool.QueryRow(ctx, query).Scan(&count)
	return count, err
}
