package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lexwatch/lexwatch/internal/api"
	"github.com/lexwatch/lexwatch/internal/audio"
	"github.com/lexwatch/lexwatch/internal/capture"
	"github.com/lexwatch/lexwatch/internal/config"
	"github.com/lexwatch/lexwatch/internal/explain"
	"github.com/lexwatch/lexwatch/internal/metrics"
	"github.com/lexwatch/lexwatch/internal/notify"
	"github.com/lexwatch/lexwatch/internal/pipeline"
	"github.com/lexwatch/lexwatch/internal/storage/sqlite"
	"github.com/lexwatch/lexwatch/internal/transcription"
	"github.com/lexwatch/lexwatch/internal/websocket"
	"github.com/lexwatch/lexwatch/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting LexWatch",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Create SQLite storage
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}

	storage, err := sqlite.NewStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer storage.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	// Prune old transcripts on startup
	if cfg.Storage.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Storage.RetentionDays)
		pruned, err := storage.PruneOlderThan(cutoff)
		if err != nil {
			log.Warn("Failed to prune old records", logger.Error(err))
		} else if pruned > 0 {
			log.Info("Pruned old transcripts", logger.Int64("count", pruned))
		}
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()

	// Create Prometheus metrics
	m := metrics.NewMetrics()

	// Main context governs the capture process and the pipeline
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create audio capture source
	source := capture.NewFFmpegSource(ctx, capture.Config{
		FFmpegPath:  cfg.Audio.FFmpegPath,
		InputFormat: cfg.Audio.InputFormat,
		Device:      cfg.Audio.Device,
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		FrameSize:   cfg.Audio.FrameSize,
	}, log)
	if err := source.Start(); err != nil {
		log.Error("Failed to start audio capture", logger.Error(err))
		os.Exit(1)
	}
	defer source.Stop()

	segmenter := audio.NewSegmenter(source, cfg.Audio.SampleRate, cfg.Audio.ChunkSeconds, log)
	gate := audio.NewSilenceGate(cfg.Audio.SilenceThreshold)

	// Create transcription client
	transcriber, err := transcription.NewWhisperClient(transcription.Config{
		APIKey:      cfg.Transcription.OpenAIAPIKey,
		BaseURL:     cfg.Transcription.OpenAIBaseURL,
		Model:       cfg.Transcription.Model,
		Language:    cfg.Transcription.Language,
		TimeoutSecs: cfg.Transcription.TimeoutSecs,
	}, log)
	if err != nil {
		log.Error("Failed to create transcription client", logger.Error(err))
		os.Exit(1)
	}

	// Create explanation provider
	var provider explain.Provider
	switch cfg.Explain.Provider {
	case "gemini":
		provider, err = explain.NewGeminiProvider(ctx, cfg.Explain.GeminiAPIKey, cfg.Explain.GeminiModel, log)
		if err != nil {
			log.Error("Failed to create Gemini provider", logger.Error(err))
			os.Exit(1)
		}
	default:
		provider = explain.NewJamAIProvider(explain.JamAIConfig{
			BaseURL:     cfg.Explain.BaseURL,
			APIKey:      cfg.Explain.APIKey,
			ProjectID:   cfg.Explain.ProjectID,
			TableID:     cfg.Explain.TableID,
			TimeoutSecs: cfg.Explain.TimeoutSecs,
		}, log)
	}
	log.Info("Using explanation provider", logger.String("provider", cfg.Explain.Provider))

	explainClient := explain.NewClient(provider, explain.RetryPolicy{
		MaxAttempts: cfg.Explain.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Explain.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Explain.RetryMaxDelayMs) * time.Millisecond,
		Jitter:      cfg.Explain.Jitter,
	}, log)
	explainClient.SetRetryHook(m.SubmitRetries.Inc)

	parser := explain.NewParser(explain.ParserConfig{
		MaxTitleLen:      cfg.Explain.MaxTitleLen,
		PreserveNewlines: cfg.Explain.PreserveNewlines,
	})

	// Assemble notifiers
	notifiers := notify.Multi{notify.NewWebSocketNotifier(wsServer)}
	if cfg.Notify.DesktopEnabled {
		notifiers = append(notifiers, notify.NewDesktopNotifier(cfg.Notify.AppName, cfg.Notify.TimeoutSecs, log))
	}

	// Create and start the pipeline
	driver := pipeline.NewDriver(segmenter, gate, transcriber, explainClient, parser, notifiers, storage, wsServer, m, log)

	pipelineDone := make(chan error, 1)
	go func() {
		pipelineDone <- driver.Run(ctx)
	}()

	// Create API router
	router := api.NewRouter(cfg, log, wsServer, storage, driver)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal or pipeline exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	pipelineStopped := false
	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", logger.String("signal", sig.String()))
	case err := <-pipelineDone:
		pipelineStopped = true
		if err != nil && err != context.Canceled {
			log.Error("Pipeline exited with error", logger.Error(err))
		} else {
			log.Info("Pipeline exited")
		}
	}

	log.Info("Shutting down...")

	// Stop capture and the pipeline; the driver notices at the next chunk boundary
	cancel()
	if err := source.Stop(); err != nil {
		log.Warn("Error stopping capture source", logger.Error(err))
	}

	if !pipelineStopped {
		select {
		case <-pipelineDone:
			log.Info("Pipeline stopped.")
		case <-time.After(10 * time.Second):
			log.Warn("Timed out waiting for pipeline to stop")
		}
	}

	// Shutdown the HTTP server
	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Server fully stopped")
}
