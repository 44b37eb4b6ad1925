package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexwatch/lexwatch/internal/config"
	"github.com/lexwatch/lexwatch/internal/pipeline"
	"github.com/lexwatch/lexwatch/internal/storage/sqlite"
	"github.com/lexwatch/lexwatch/internal/websocket"
	"github.com/lexwatch/lexwatch/pkg/logger"
)

// Router wraps the chi mux and the API handlers
type Router struct {
	handler *Handler
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(cfg *config.Config, log *logger.Logger, wsServer *websocket.Server, storage *sqlite.Storage, driver *pipeline.Driver) *Router {
	return &Router{
		handler: NewHandler(cfg, log, wsServer, storage, driver),
		logger:  log.Named("api-router"),
	}
}

// Routes returns the configured HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/status", rt.handler.GetStatus)
		r.Get("/config", rt.handler.GetConfig)
		r.Get("/transcripts", rt.handler.GetTranscripts)
		r.Get("/terms", rt.handler.GetTerms)
	})

	r.Get("/ws", rt.handler.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
