package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// Handler wires HTTP endpoints for orders.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.show)
	r.Put("/orders/{id}", h.update)
	r.Delete("/orders/{id}", h.delete)
	r.Post("/orders/{id}/work-logs", h.addWorkLog)
	r.Put("/orders/{id}/work-logs/{logID}", h.updateWorkLog)
	r.Delete("/orders/{id}/work-logs/{logID}", h.removeWorkLog)
	r.Post("/orders/{id}/costs", h.addCostLine)
	r.Delete("/orders/{id}/costs/{lineID}", h.removeCostLine)
	r.Post("/orders/{id}/payments", h.addPayment)
	r.Delete("/orders/{id}/payments/{paymentID}", h.removePayment)
	r.Post("/orders/{id}/entries", h.addEntry)
	r.Delete("/orders/{id}/entries/{entryID}", h.removeEntry)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.PageParams(r)
	items, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]Response, len(items))
	for i, o := range items {
		resp[i] = orderResponse(o)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	o, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, orderResponse(o))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detailResponse(detail))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	o, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderResponse(o))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addWorkLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req WorkLogRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	log, err := h.service.AddWorkLog(r.Context(), id, WorkLogInput{StartedAt: req.StartedAt, EndedAt: req.EndedAt})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, WorkLogResponse{ID: log.ID, StartedAt: log.StartedAt, EndedAt: log.EndedAt, Hours: log.Hours()})
}

func (h *Handler) updateWorkLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	logID, ok := pathID(w, r, "logID")
	if !ok {
		return
	}
	var req WorkLogRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	if err := h.service.UpdateWorkLog(r.Context(), id, logID, WorkLogInput{StartedAt: req.StartedAt, EndedAt: req.EndedAt}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeWorkLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	logID, ok := pathID(w, r, "logID")
	if !ok {
		return
	}
	if err := h.service.RemoveWorkLog(r.Context(), id, logID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addCostLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CostLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	line, err := h.service.AddCostLine(r.Context(), id, CostLineInput{Name: req.Name, Cost: decimal.NewFromFloat(req.Cost)})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, CostLineResponse{ID: line.ID, Name: line.Name, Cost: line.Cost.StringFixed(2)})
}

func (h *Handler) removeCostLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	if err := h.service.RemoveCostLine(r.Context(), id, lineID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	payment, err := h.service.AddPayment(r.Context(), id, PaymentInput{
		Date:   date,
		Kind:   PaymentKind(req.Kind),
		Amount: decimal.NewFromFloat(req.Amount),
		Notes:  req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, PaymentResponse{
		ID:     payment.ID,
		Date:   payment.Date.Format("2006-01-02"),
		Kind:   string(payment.Kind),
		Amount: payment.Amount.StringFixed(2),
		Notes:  payment.Notes,
	})
}

func (h *Handler) removePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "paymentID")
	if !ok {
		return
	}
	if err := h.service.RemovePayment(r.Context(), id, paymentID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req EntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("X-Idempotency-Key")
	}
	entry, err := h.service.AddEntry(r.Context(), id, EntryInput{
		ItemID:         req.ItemID,
		Quantity:       req.Quantity,
		QuantityBroken: req.QuantityBroken,
		Cost:           decimal.NewFromFloat(req.Cost),
		ActorID:        httpx.ActorID(r),
		IdempotencyKey: key,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entryResponse(entry))
}

func (h *Handler) removeEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "entryID")
	if !ok {
		return
	}
	if err := h.service.RemoveEntry(r.Context(), id, entryID, httpx.ActorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func entryResponse(e stock.ConsumptionEntry) ConsumptionLineResponse {
	return ConsumptionLineResponse{
		ID:             e.ID,
		ItemID:         e.ItemID,
		Quantity:       e.Quantity,
		QuantityBroken: e.QuantityBroken,
		Cost:           e.Cost.StringFixed(2),
	}
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", key+" must be a positive integer")
		return 0, false
	}
	return id, true
}
