package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

type memoryRepo struct {
	orders   map[int64]Order
	logs     map[int64]WorkLog
	costs    map[int64]CostLine
	payments map[int64]Payment
	lines    map[int64][]ConsumptionLine
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:   make(map[int64]Order),
		logs:     make(map[int64]WorkLog),
		costs:    make(map[int64]CostLine),
		payments: make(map[int64]Payment),
		lines:    make(map[int64][]ConsumptionLine),
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) Create(ctx context.Context, o Order) (int64, error) {
	o.ID = r.id()
	r.orders[o.ID] = o
	return o.ID, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	return o, nil
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, o Order) error {
	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	o.ID = id
	r.orders[id] = o
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(r.orders, id)
	return nil
}

func (r *memoryRepo) InsertWorkLog(ctx context.Context, log WorkLog) (int64, error) {
	log.ID = r.id()
	r.logs[log.ID] = log
	return log.ID, nil
}

func (r *memoryRepo) UpdateWorkLog(ctx context.Context, id int64, log WorkLog) error {
	log.ID = id
	r.logs[id] = log
	return nil
}

func (r *memoryRepo) DeleteWorkLog(ctx context.Context, id int64) error {
	delete(r.logs, id)
	return nil
}

func (r *memoryRepo) ListWorkLogs(ctx context.Context, orderID int64) ([]WorkLog, error) {
	var out []WorkLog
	for _, log := range r.logs {
		if log.OrderID == orderID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertCostLine(ctx context.Context, line CostLine) (int64, error) {
	line.ID = r.id()
	r.costs[line.ID] = line
	return line.ID, nil
}

func (r *memoryRepo) DeleteCostLine(ctx context.Context, id int64) error {
	delete(r.costs, id)
	return nil
}

func (r *memoryRepo) ListCostLines(ctx context.Context, orderID int64) ([]CostLine, error) {
	var out []CostLine
	for _, line := range r.costs {
		if line.OrderID == orderID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *memoryRepo) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	payment.ID = r.id()
	r.payments[payment.ID] = payment
	return payment.ID, nil
}

func (r *memoryRepo) DeletePayment(ctx context.Context, id int64) error {
	delete(r.payments, id)
	return nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ConsumptionLines(ctx context.Context, orderID int64) ([]ConsumptionLine, error) {
	return r.lines[orderID], nil
}

type memoryLedger struct {
	repo    *memoryRepo
	entries map[int64]stock.ConsumptionEntry
	nextID  int64
}

func newMemoryLedger(repo *memoryRepo) *memoryLedger {
	return &memoryLedger{repo: repo, entries: make(map[int64]stock.ConsumptionEntry)}
}

func (l *memoryLedger) CreateConsumptionEntry(ctx context.Context, input stock.ConsumptionEntryInput) (stock.ConsumptionEntry, error) {
	l.nextID++
	entry := stock.ConsumptionEntry{
		ID:             l.nextID,
		OrderID:        input.OrderID,
		ItemID:         input.ItemID,
		Quantity:       input.Quantity,
		QuantityBroken: input.QuantityBroken,
		Cost:           input.Cost,
	}
	l.entries[entry.ID] = entry
	l.repo.lines[input.OrderID] = append(l.repo.lines[input.OrderID], ConsumptionLine{Entry: entry, ItemKind: stock.ItemKindMaterial})
	return entry, nil
}

func (l *memoryLedger) DeleteConsumptionEntry(ctx context.Context, id int64, actorID int64) (stock.ConsumptionEntry, error) {
	entry, ok := l.entries[id]
	if !ok {
		return stock.ConsumptionEntry{}, fmt.Errorf("consumption entry %d: %w", id, shared.ErrNotFound)
	}
	delete(l.entries, id)
	lines := l.repo.lines[entry.OrderID]
	for i, line := range lines {
		if line.Entry.ID == id {
			l.repo.lines[entry.OrderID] = append(lines[:i], lines[i+1:]...)
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

func validInput() Input {
	return Input{
		CustomerID:       1,
		ServiceID:        1,
		Date:             time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		HourlyRate:       decimal.NewFromInt(100),
		MaterialUpcharge: decimal.NewFromInt(20),
		Tax:              decimal.NewFromInt(10),
		Discount:         decimal.NewFromInt(5),
		Callout:          CalloutStandard,
	}
}

func mustCreateOrder(t *testing.T, svc *Service) Order {
	t.Helper()
	o, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	return o
}

func TestCreateRejectsUnknownCallout(t *testing.T) {
	svc, _, _ := newTestService()

	input := validInput()
	input.Callout = decimal.NewFromInt(75)
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestWorkLogRangeEnforced(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreateOrder(t, svc)

	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	_, err := svc.AddWorkLog(ctx, o.ID, WorkLogInput{StartedAt: start, EndedAt: start})
	require.ErrorIs(t, err, ErrWorkLogRange)

	_, err = svc.AddWorkLog(ctx, o.ID, WorkLogInput{StartedAt: start, EndedAt: start.Add(-time.Hour)})
	require.ErrorIs(t, err, ErrWorkLogRange)

	log, err := svc.AddWorkLog(ctx, o.ID, WorkLogInput{StartedAt: start, EndedAt: start.Add(5 * time.Hour)})
	require.NoError(t, err)

	err = svc.UpdateWorkLog(ctx, o.ID, log.ID, WorkLogInput{StartedAt: start, EndedAt: start})
	require.ErrorIs(t, err, ErrWorkLogRange)
}

func TestWorkLogOwnership(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	o1 := mustCreateOrder(t, svc)
	o2 := mustCreateOrder(t, svc)

	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	log, err := svc.AddWorkLog(ctx, o1.ID, WorkLogInput{StartedAt: start, EndedAt: start.Add(time.Hour)})
	require.NoError(t, err)

	err = svc.RemoveWorkLog(ctx, o2.ID, log.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.RemoveWorkLog(ctx, o1.ID, log.ID))
}

func TestAddPaymentValidatesKind(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreateOrder(t, svc)

	_, err := svc.AddPayment(ctx, o.ID, PaymentInput{Kind: "card", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrUnknownPaymentKind)

	_, err = svc.AddPayment(ctx, o.ID, PaymentInput{Kind: PaymentKindCheck, Amount: decimal.NewFromInt(-10)})
	require.ErrorIs(t, err, shared.ErrValidation)

	p, err := svc.AddPayment(ctx, o.ID, PaymentInput{Kind: PaymentKindCash, Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NotZero(t, p.ID)
}

func TestAddCostLineValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreateOrder(t, svc)

	_, err := svc.AddCostLine(ctx, o.ID, CostLineInput{Name: "", Cost: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.AddCostLine(ctx, o.ID, CostLineInput{Name: "Disposal fee", Cost: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetDerivesPricing(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreateOrder(t, svc)

	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := svc.AddWorkLog(ctx, o.ID, WorkLogInput{StartedAt: start, EndedAt: start.Add(5 * time.Hour)})
	require.NoError(t, err)

	_, err = svc.AddEntry(ctx, o.ID, EntryInput{ItemID: 1, Quantity: 10, Cost: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = svc.AddCostLine(ctx, o.ID, CostLineInput{Name: "Disposal fee", Cost: decimal.NewFromFloat(55.68)})
	require.NoError(t, err)

	detail, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, "725.68", detail.Pricing.Subtotal.StringFixed(2))
	require.Equal(t, "761.96", detail.Pricing.Total.StringFixed(2))
	require.False(t, detail.Pricing.Paid)
}

func TestRemoveEntryChecksOwnership(t *testing.T) {
	svc, _, ledger := newTestService()
	ctx := context.Background()
	o1 := mustCreateOrder(t, svc)
	o2 := mustCreateOrder(t, svc)

	entry, err := svc.AddEntry(ctx, o1.ID, EntryInput{ItemID: 1, Quantity: 2, Cost: decimal.NewFromInt(10)})
	require.NoError(t, err)

	err = svc.RemoveEntry(ctx, o2.ID, entry.ID, 0)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, ledger.entries, entry.ID)

	require.NoError(t, svc.RemoveEntry(ctx, o1.ID, entry.ID, 0))
	require.NotContains(t, ledger.entries, entry.ID)
}
