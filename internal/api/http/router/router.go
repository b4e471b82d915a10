package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtroode/userdir/internal/api/http/handler"
	"github.com/dtroode/userdir/internal/api/http/middleware"
	"github.com/dtroode/userdir/internal/logger"
	"github.com/dtroode/userdir/internal/model"
)

// Router wires the users views, health and metrics endpoints.
type Router struct {
	store          handler.UserStore
	photos         handler.PhotoResolver
	gatherer       prometheus.Gatherer
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates a new Router.
func New(
	store handler.UserStore,
	photos handler.PhotoResolver,
	gatherer prometheus.Gatherer,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		store:          store,
		photos:         photos,
		gatherer:       gatherer,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Register builds the HTTP handler.
func (r *Router) Register() http.Handler {
	requestID := middleware.NewRequestID(r.contextManager)
	logging := middleware.NewLogging(r.contextManager, r.logger)
	users := handler.NewUsers(r.store, r.photos, r.logger)

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer, requestID.Handle, logging.Handle)

	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))

	mux.Get("/state", users.State)
	mux.Route("/users", func(ur chi.Router) {
		ur.Get("/", users.List)
		ur.Post("/", users.Create)
		ur.Get("/{id}", users.Get)
		ur.Put("/{id}", users.Update)
		ur.Delete("/{id}", users.Delete)
		ur.Get("/{id}/photo", users.Photo)
	})

	return mux
}
