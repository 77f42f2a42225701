// Package rest exposes the services over HTTP.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"savethespice-backend/internal/config"
	"savethespice-backend/internal/infrastructure/observability"
	"savethespice-backend/internal/interfaces/http/rest/handlers"
	"savethespice-backend/internal/interfaces/http/rest/middleware"
	"savethespice-backend/pkg/api"
)

// Version is reported by /health.
var Version = "dev"

// Router builds the HTTP routing tree.
type Router struct {
	recipes    *handlers.RecipeHandler
	categories *handlers.CategoryHandler
	users      *handlers.UserHandler
	shares     *handlers.ShareHandler
	collector  *observability.Collector
	server     config.Server
	auth       config.Auth
	logger     *zap.Logger
	started    time.Time
}

// NewRouter creates a router.
func NewRouter(
	recipes handlers.RecipeService,
	categories handlers.CategoryService,
	meta handlers.MetaService,
	shares handlers.ShareService,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		recipes:    handlers.NewRecipeHandler(recipes, logger),
		categories: handlers.NewCategoryHandler(categories, logger),
		users:      handlers.NewUserHandler(meta, logger),
		shares:     handlers.NewShareHandler(shares, logger),
		collector:  collector,
		server:     cfg.Server,
		auth:       cfg.Auth,
		logger:     logger,
		started:    time.Now(),
	}
}

// Setup configures middleware and routes.
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.collector))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.DevUserHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if rt.server.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(rt.server.RequestTimeout))
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		api.Error(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "no such route")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	router.Get("/health", handlers.Health(rt.started, Version))
	router.Handle("/metrics", rt.collector.Handler())
	router.Get("/public/share/{shareId}", rt.shares.Get)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.auth, rt.logger))

		r.Post("/users", rt.users.Create)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", rt.recipes.List)
			r.Post("/", rt.recipes.Create)
			r.Put("/", rt.recipes.PutMany)
			r.Patch("/", rt.recipes.PatchMany)
			r.Delete("/", rt.recipes.DeleteMany)
			r.Get("/{id}", rt.recipes.Get)
			r.Put("/{id}", rt.recipes.Put)
			r.Patch("/{id}", rt.recipes.Patch)
			r.Delete("/{id}", rt.recipes.Delete)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", rt.categories.List)
			r.Post("/", rt.categories.Create)
			r.Patch("/", rt.categories.PatchMany)
			r.Delete("/", rt.categories.DeleteMany)
			r.Get("/{id}", rt.categories.Get)
			r.Put("/{id}", rt.categories.Put)
			r.Patch("/{id}", rt.categories.Patch)
			r.Delete("/{id}", rt.categories.Delete)
		})

		r.Route("/shoppinglist", func(r chi.Router) {
			r.Get("/", rt.users.ShoppingList)
			r.Patch("/", rt.users.AppendShoppingList)
			r.Put("/", rt.users.ReplaceShoppingList)
		})

		r.Post("/share", rt.shares.Create)
	})

	return router
}
