package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/masterdata/customers"
	"github.com/fieldserve/fieldserve/internal/masterdata/services"
	"github.com/fieldserve/fieldserve/internal/masterdata/suppliers"
	"github.com/fieldserve/fieldserve/internal/orders"
	"github.com/fieldserve/fieldserve/internal/platform/httpx"
	"github.com/fieldserve/fieldserve/internal/purchases"
	"github.com/fieldserve/fieldserve/internal/stock"
)

// WorkerHealth reports background worker liveness for the health endpoint.
type WorkerHealth interface {
	Alive(ctx context.Context) (bool, error)
}

// RouteMounter is anything that can register its routes on a chi router.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Pool             *pgxpool.Pool
	CustomersHandler *customers.Handler
	SuppliersHandler *suppliers.Handler
	ServicesHandler  *services.Handler
	StockHandler     *stock.Handler
	PurchasesHandler *purchases.Handler
	OrdersHandler    *orders.Handler
	JobsHandler      RouteMounter
	WorkerHealth     WorkerHealth
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params))

	r.Route("/api/v1", func(r chi.Router) {
		params.CustomersHandler.MountRoutes(r)
		params.SuppliersHandler.MountRoutes(r)
		params.ServicesHandler.MountRoutes(r)
		params.StockHandler.MountRoutes(r)
		params.PurchasesHandler.MountRoutes(r)
		params.OrdersHandler.MountRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}

func healthHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]any{"status": "ok"}
		code := http.StatusOK

		if params.Pool != nil {
			if err := params.Pool.Ping(ctx); err != nil {
				params.Logger.Error("health: database ping", slog.Any("error", err))
				status["status"] = "degraded"
				status["database"] = "down"
				code = http.StatusServiceUnavailable
			} else {
				status["database"] = "up"
			}
		}

		if params.WorkerHealth != nil {
			alive, err := params.WorkerHealth.Alive(ctx)
			switch {
			case err != nil:
				status["worker"] = "unknown"
			case alive:
				status["worker"] = "up"
			default:
				status["worker"] = "down"
			}
		}

		httpx.JSON(w, code, status)
	}
}
