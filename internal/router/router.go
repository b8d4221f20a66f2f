package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/config"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/kinder-supplies/api/internal/handler"
	"github.com/kinder-supplies/api/internal/metrics"
	mw "github.com/kinder-supplies/api/internal/middleware"
	"github.com/kinder-supplies/api/internal/service"
	"github.com/kinder-supplies/api/internal/staging"
)

// New creates a Chi router with all application routes wired up.
// Guardian routes carry a session cookie; /admin routes require a staff JWT.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, stage *staging.Store, m *metrics.Registry) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	lookup := catalog.NewLookup(queries)
	handler.NewCatalogHandler(lookup).RegisterRoutes(r)

	// Guardian order flow
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, cfg.Location, cfg.OrderNumberMaxAttempts, m)
	r.Group(func(r chi.Router) {
		r.Use(mw.Session(cfg.SecureCookies))
		orderHandler := handler.NewOrderHandler(orderService, lookup, stage, queries, cfg, m)
		orderHandler.RegisterRoutes(r)
	})

	// Staff routes
	r.Route("/admin", func(r chi.Router) {
		authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
		authHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.AdminRoleAdmin, enum.AdminRoleStaff))

			handler.NewAdminOrderHandler(queries, lookup, cfg.Location).RegisterRoutes(r)

			reportService := service.NewReportService(queries, lookup, cfg.Location, m)
			handler.NewReportsHandler(reportService, cfg.Location).RegisterRoutes(r)

			printService := service.NewPrintService(queries, lookup, m)
			handler.NewPrintHandler(printService, cfg.Location).RegisterRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
