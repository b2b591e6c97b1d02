package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/shared"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, o Order) (int64, error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	Update(ctx context.Context, id int64, o Order) error
	Delete(ctx context.Context, id int64) error
	InsertWorkLog(ctx context.Context, log WorkLog) (int64, error)
	UpdateWorkLog(ctx context.Context, id int64, log WorkLog) error
	DeleteWorkLog(ctx context.Context, id int64) error
	ListWorkLogs(ctx context.Context, orderID int64) ([]WorkLog, error)
	InsertCostLine(ctx context.Context, line CostLine) (int64, error)
	DeleteCostLine(ctx context.Context, id int64) error
	ListCostLines(ctx context.Context, orderID int64) ([]CostLine, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	DeletePayment(ctx context.Context, id int64) error
	ListPayments(ctx context.Context, orderID int64) ([]Payment, error)
	ConsumptionLines(ctx context.Context, orderID int64) ([]ConsumptionLine, error)
}

// StockLedger is the stock service surface orders need for their
// consumption entries.
type StockLedger interface {
	CreateConsumptionEntry(ctx context.Context, input stock.ConsumptionEntryInput) (stock.ConsumptionEntry, error)
	DeleteConsumptionEntry(ctx context.Context, id int64, actorID int64) (stock.ConsumptionEntry, error)
}

// Service coordinates orders, their children, and the pricing cascade.
type Service struct {
	repo   RepositoryPort
	ledger StockLedger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger StockLedger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Input carries validated order fields. Numeric bounds (hourly rate,
// upcharge, tax, discount percentages) are enforced by the request layer;
// the callout fee is re-checked here because it is an enumeration, not a
// range.
type Input struct {
	CustomerID       int64
	ServiceID        int64
	Date             time.Time
	Description      string
	HourlyRate       decimal.Decimal
	MaterialUpcharge decimal.Decimal
	Tax              decimal.Decimal
	Discount         decimal.Decimal
	Callout          decimal.Decimal
	Completed        bool
	Notes            string
}

// WorkLogInput describes a work log write.
type WorkLogInput struct {
	StartedAt time.Time
	EndedAt   time.Time
}

// CostLineInput describes a named charge write.
type CostLineInput struct {
	Name string
	Cost decimal.Decimal
}

// PaymentInput describes a payment write.
type PaymentInput struct {
	Date   time.Time
	Kind   PaymentKind
	Amount decimal.Decimal
	Notes  string
}

// EntryInput describes a consumption ledger entry added through the order
// surface.
type EntryInput struct {
	ItemID         int64
	Quantity       float64
	QuantityBroken float64
	Cost           decimal.Decimal
	ActorID        int64
	IdempotencyKey string
}

// Detail is an order with its children and the pricing cascade computed
// fresh from them.
type Detail struct {
	Order            Order
	WorkLogs         []WorkLog
	CostLines        []CostLine
	Payments         []Payment
	ConsumptionLines []ConsumptionLine
	Pricing          Pricing
}

// Create records a new order.
func (s *Service) Create(ctx context.Context, input Input) (Order, error) {
	if err := validateInput(input); err != nil {
		return Order{}, err
	}
	id, err := s.repo.Create(ctx, orderFromInput(input))
	if err != nil {
		return Order{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get loads the order and derives its pricing from the live children.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	logs, err := s.repo.ListWorkLogs(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	costs, err := s.repo.ListCostLines(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	lines, err := s.repo.ConsumptionLines(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		Order:            o,
		WorkLogs:         logs,
		CostLines:        costs,
		Payments:         payments,
		ConsumptionLines: lines,
		Pricing:          ComputePricing(o, logs, lines, costs, payments),
	}, nil
}

// List returns orders.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Order, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update rewrites order fields.
func (s *Service) Update(ctx context.Context, id int64, input Input) (Order, error) {
	if err := validateInput(input); err != nil {
		return Order{}, err
	}
	if err := s.repo.Update(ctx, id, orderFromInput(input)); err != nil {
		return Order{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes the order and its children.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// AddWorkLog records a span of work. A log that ends at or before its start
// is rejected before anything is written.
func (s *Service) AddWorkLog(ctx context.Context, orderID int64, input WorkLogInput) (WorkLog, error) {
	if !input.EndedAt.After(input.StartedAt) {
		return WorkLog{}, ErrWorkLogRange
	}
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return WorkLog{}, err
	}
	log := WorkLog{OrderID: orderID, StartedAt: input.StartedAt, EndedAt: input.EndedAt}
	id, err := s.repo.InsertWorkLog(ctx, log)
	if err != nil {
		return WorkLog{}, err
	}
	log.ID = id
	return log, nil
}

// UpdateWorkLog rewrites a span of work under the same range rule.
func (s *Service) UpdateWorkLog(ctx context.Context, orderID, logID int64, input WorkLogInput) error {
	if !input.EndedAt.After(input.StartedAt) {
		return ErrWorkLogRange
	}
	if err := s.ownWorkLog(ctx, orderID, logID); err != nil {
		return err
	}
	return s.repo.UpdateWorkLog(ctx, logID, WorkLog{OrderID: orderID, StartedAt: input.StartedAt, EndedAt: input.EndedAt})
}

// RemoveWorkLog deletes a span of work.
func (s *Service) RemoveWorkLog(ctx context.Context, orderID, logID int64) error {
	if err := s.ownWorkLog(ctx, orderID, logID); err != nil {
		return err
	}
	return s.repo.DeleteWorkLog(ctx, logID)
}

// AddCostLine records a named charge.
func (s *Service) AddCostLine(ctx context.Context, orderID int64, input CostLineInput) (CostLine, error) {
	if input.Name == "" {
		return CostLine{}, fmt.Errorf("%w: cost line name required", shared.ErrValidation)
	}
	if input.Cost.IsNegative() {
		return CostLine{}, fmt.Errorf("%w: cost must be >= 0", shared.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return CostLine{}, err
	}
	line := CostLine{OrderID: orderID, Name: input.Name, Cost: input.Cost}
	id, err := s.repo.InsertCostLine(ctx, line)
	if err != nil {
		return CostLine{}, err
	}
	line.ID = id
	return line, nil
}

// RemoveCostLine deletes a named charge.
func (s *Service) RemoveCostLine(ctx context.Context, orderID, lineID int64) error {
	lines, err := s.repo.ListCostLines(ctx, orderID)
	if err != nil {
		return err
	}
	if !containsCostLine(lines, lineID) {
		return fmt.Errorf("cost line %d in order %d: %w", lineID, orderID, shared.ErrNotFound)
	}
	return s.repo.DeleteCostLine(ctx, lineID)
}

// AddPayment records money received.
func (s *Service) AddPayment(ctx context.Context, orderID int64, input PaymentInput) (Payment, error) {
	if input.Kind != PaymentKindCash && input.Kind != PaymentKindCheck {
		return Payment{}, ErrUnknownPaymentKind
	}
	if input.Amount.IsNegative() {
		return Payment{}, fmt.Errorf("%w: amount must be >= 0", shared.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return Payment{}, err
	}
	payment := Payment{OrderID: orderID, Date: input.Date, Kind: input.Kind, Amount: input.Amount, Notes: input.Notes}
	id, err := s.repo.InsertPayment(ctx, payment)
	if err != nil {
		return Payment{}, err
	}
	payment.ID = id
	return payment, nil
}

// RemovePayment deletes a payment; the order's paid state follows on the
// next read.
func (s *Service) RemovePayment(ctx context.Context, orderID, paymentID int64) error {
	payments, err := s.repo.ListPayments(ctx, orderID)
	if err != nil {
		return err
	}
	owned := false
	for _, p := range payments {
		if p.ID == paymentID {
			owned = true
			break
		}
	}
	if !owned {
		return fmt.Errorf("payment %d in order %d: %w", paymentID, orderID, shared.ErrNotFound)
	}
	return s.repo.DeletePayment(ctx, paymentID)
}

// AddEntry posts a consumption ledger entry against this order.
func (s *Service) AddEntry(ctx context.Context, orderID int64, input EntryInput) (stock.ConsumptionEntry, error) {
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return stock.ConsumptionEntry{}, err
	}
	return s.ledger.CreateConsumptionEntry(ctx, stock.ConsumptionEntryInput{
		OrderID:        orderID,
		ItemID:         input.ItemID,
		Quantity:       input.Quantity,
		QuantityBroken: input.QuantityBroken,
		Cost:           input.Cost,
		ActorID:        input.ActorID,
		IdempotencyKey: input.IdempotencyKey,
	})
}

// RemoveEntry deletes a consumption ledger entry belonging to this order.
func (s *Service) RemoveEntry(ctx context.Context, orderID, entryID, actorID int64) error {
	lines, err := s.repo.ConsumptionLines(ctx, orderID)
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
		return fmt.Errorf("entry %d in order %d: %w", entryID, orderID, shared.ErrNotFound)
	}
	_, err = s.ledger.DeleteConsumptionEntry(ctx, entryID, actorID)
	return err
}

func (s *Service) ownWorkLog(ctx context.Context, orderID, logID int64) error {
	logs, err := s.repo.ListWorkLogs(ctx, orderID)
	if err != nil {
		return err
	}
	for _, log := range logs {
		if log.ID == logID {
			return nil
		}
	}
	return fmt.Errorf("work log %d in order %d: %w", logID, orderID, shared.ErrNotFound)
}

func containsCostLine(lines []CostLine, id int64) bool {
	for _, line := range lines {
		if line.ID == id {
			return true
		}
	}
	return false
}

func validateInput(input Input) error {
	if !ValidCallout(input.Callout) {
		return fmt.Errorf("%w: callout fee must be %s or %s", shared.ErrValidation,
			CalloutStandard.StringFixed(2), CalloutEmergency.StringFixed(2))
	}
	return nil
}

func orderFromInput(input Input) Order {
	return Order{
		CustomerID:       input.CustomerID,
		ServiceID:        input.ServiceID,
		Date:             input.Date,
		Description:      input.Description,
		HourlyRate:       input.HourlyRate,
		MaterialUpcharge: input.MaterialUpcharge,
		Tax:              input.Tax,
		Discount:         input.Discount,
		Callout:          input.Callout,
		Completed:        input.Completed,
		Notes:            input.Notes,
	}
}
