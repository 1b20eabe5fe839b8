package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mhalder/ragserver/internal/api"
	"github.com/mhalder/ragserver/internal/config"
	"github.com/mhalder/ragserver/internal/embedding"
	"github.com/mhalder/ragserver/internal/history"
	"github.com/mhalder/ragserver/internal/index"
	"github.com/mhalder/ragserver/internal/llm"
	"github.com/mhalder/ragserver/internal/prompt"
	"github.com/mhalder/ragserver/internal/repository"
	"github.com/mhalder/ragserver/internal/service"
	"github.com/mhalder/ragserver/internal/splitter"
	"github.com/mhalder/ragserver/internal/status"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database (chat history and persisted index chunks)
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize embedding provider; an unreachable model is fatal here,
	// not per request.
	provider, err := embedding.NewProvider(cfg.Embedding)
	if err != nil {
		logger.Fatal("Failed to create embedding provider", zap.Error(err))
	}
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	dimension, err := embedding.Probe(probeCtx, provider)
	probeCancel()
	if err != nil {
		logger.Fatal("Embedding model unavailable", zap.Error(err))
	}
	logger.Info("Embedding model ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimension", dimension),
	)

	// Wire the indexing pipeline
	split := splitter.New(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	indexManager := index.NewManager(provider, split, db, logger)
	tracker := status.NewTracker()
	historyStore := history.NewStore(db)
	promptBuilder := prompt.NewBuilder(indexManager, historyStore, cfg.Index.TopK, cfg.History.TokenBudget, logger)

	retrieval := service.NewRetrievalService(cfg, indexManager, tracker, historyStore, promptBuilder, logger)

	serviceCtx, serviceCancel := context.WithCancel(context.Background())
	defer serviceCancel()
	retrieval.Start(serviceCtx)

	// Generation engines, consumed as streaming token sources
	engines := llm.NewRouter(cfg.LLM.OllamaURL, cfg.LLM.LlamaCppURL)

	// Setup router
	router := api.SetupRouter(retrieval, engines, logger, api.RouterConfig{
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting retrieval server", zap.String("address", cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
