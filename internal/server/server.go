// Package server wires the HTTP routes of the local API.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dukerupert/larder/internal/coordinator"
	"github.com/dukerupert/larder/internal/handler"
	"github.com/dukerupert/larder/internal/middleware"
	ws "github.com/dukerupert/larder/internal/websocket"
)

// Config carries the server's dependencies.
type Config struct {
	Coordinator *coordinator.Coordinator
	Queue       handler.Queue
	Hub         *ws.Hub
	ExportDir   string
	// WSOrigins lists extra origins allowed to open the change feed.
	WSOrigins []string
}

type Server struct {
	hub       *ws.Hub
	queue     handler.Queue
	wsOrigins []string

	inventoryH *handler.InventoryHandler
	shoppingH  *handler.ShoppingHandler
	categoryH  *handler.CategoryHandler
	settingsH  *handler.SettingsHandler
	syncH      *handler.SyncHandler
	transferH  *handler.TransferHandler
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Server {
	c := cfg.Coordinator
	apiLogger := logger.With("component", "api")
	return &Server{
		hub:        cfg.Hub,
		queue:      cfg.Queue,
		wsOrigins:  cfg.WSOrigins,
		inventoryH: handler.NewInventoryHandler(c.Inventory, apiLogger),
		shoppingH:  handler.NewShoppingHandler(c.Shopping, c.Inventory, apiLogger),
		categoryH:  handler.NewCategoryHandler(c.Categories, apiLogger),
		settingsH:  handler.NewSettingsHandler(c.Settings, apiLogger),
		syncH:      handler.NewSyncHandler(cfg.Queue, c, cfg.Hub, apiLogger),
		transferH:  handler.NewTransferHandler(c, cfg.ExportDir, apiLogger),
		logger:     logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Get("/ws", ws.Handler(s.hub, s.wsOrigins, func() ws.Message {
		return ws.ConnectivityMessage(s.queue.Online())
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", s.inventoryH.List)
			r.Post("/", s.inventoryH.Create)
			r.Put("/{id}", s.inventoryH.Update)
			r.Delete("/{id}", s.inventoryH.Delete)
			r.Post("/{id}/use", s.inventoryH.Use)
			r.Post("/{id}/finish", s.inventoryH.Finish)
		})

		r.Route("/shopping", func(r chi.Router) {
			r.Get("/", s.shoppingH.List)
			r.Post("/", s.shoppingH.Create)
			r.Post("/from-low-stock", s.shoppingH.FromLowStock)
			r.Post("/clear-completed", s.shoppingH.ClearCompleted)
			r.Put("/{id}", s.shoppingH.Update)
			r.Delete("/{id}", s.shoppingH.Delete)
			r.Post("/{id}/toggle", s.shoppingH.Toggle)
		})

		r.Get("/categories", s.categoryH.List)
		r.Post("/categories", s.categoryH.Create)
		r.Delete("/categories/{id}", s.categoryH.Delete)

		r.Get("/settings", s.settingsH.Get)
		r.Patch("/settings", s.settingsH.Update)
		r.Post("/settings/reset", s.settingsH.Reset)

		r.Get("/connectivity", s.syncH.GetConnectivity)
		r.Put("/connectivity", s.syncH.SetConnectivity)
		r.Get("/sync", s.syncH.Pending)
		r.Post("/sync", s.syncH.Sync)
		r.Delete("/sync", s.syncH.Discard)
		r.Get("/status", s.syncH.Status)
		r.Delete("/status/errors", s.syncH.ClearErrors)

		r.Get("/export", s.transferH.Export)
		r.Post("/import", s.transferH.Import)
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
