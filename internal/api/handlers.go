package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lexwatch/lexwatch/internal/config"
	"github.com/lexwatch/lexwatch/internal/pipeline"
	"github.com/lexwatch/lexwatch/internal/storage/sqlite"
	"github.com/lexwatch/lexwatch/internal/websocket"
	"github.com/lexwatch/lexwatch/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	config   *config.Config
	logger   *logger.Logger
	wsServer *websocket.Server
	storage  *sqlite.Storage
	driver   *pipeline.Driver
	started  time.Time
}

// NewHandler creates a new API handler
func NewHandler(cfg *config.Config, log *logger.Logger, wsServer *websocket.Server, storage *sqlite.Storage, driver *pipeline.Driver) *Handler {
	return &Handler{
		config:   cfg,
		logger:   log.Named("api-handler"),
		wsServer: wsServer,
		storage:  storage,
		driver:   driver,
		started:  time.Now().UTC(),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatus returns the pipeline state and process uptime
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"state":          h.driver.State().String(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"started_at":     h.started.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error("Failed to encode status response", logger.Error(err))
	}
}

// GetTranscripts returns the most recent transcripts, newest first
func (h *Handler) GetTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		http.Error(w, "Storage not enabled", http.StatusNotFound)
		return
	}

	limit := parseLimit(r, h.config.Storage.MaxRecentInAPI)
	records, err := h.storage.GetRecentTranscripts(limit)
	if err != nil {
		h.logger.Error("Failed to fetch transcripts", logger.Error(err))
		http.Error(w, "Failed to fetch transcripts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"count":       len(records),
		"transcripts": records,
	}); err != nil {
		h.logger.Error("Failed to encode transcripts response", logger.Error(err))
	}
}

// GetTerms returns the most recently explained terms, newest first
func (h *Handler) GetTerms(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		http.Error(w, "Storage not enabled", http.StatusNotFound)
		return
	}

	limit := parseLimit(r, h.config.Storage.MaxRecentInAPI)
	records, err := h.storage.GetRecentTerms(limit)
	if err != nil {
		h.logger.Error("Failed to fetch terms", logger.Error(err))
		http.Error(w, "Failed to fetch terms", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"count": len(records),
		"terms": records,
	}); err != nil {
		h.logger.Error("Failed to encode terms response", logger.Error(err))
	}
}

// GetConfig returns the non-sensitive parts of the running configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	// Credentials never leave the process
	sanitized := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate":       h.config.Audio.SampleRate,
			"chunk_seconds":     h.config.Audio.ChunkSeconds,
			"silence_threshold": h.config.Audio.SilenceThreshold,
		},
		"transcription": map[string]interface{}{
			"model":    h.config.Transcription.Model,
			"language": h.config.Transcription.Language,
		},
		"explain": map[string]interface{}{
			"provider":     h.config.Explain.Provider,
			"max_attempts": h.config.Explain.MaxAttempts,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sanitized); err != nil {
		h.logger.Error("Failed to encode config response", logger.Error(err))
	}
}

// HandleWebSocket upgrades the connection and registers it with the hub
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return def
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
