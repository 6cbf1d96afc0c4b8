package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uplevel-orchestrator/internal/config"
	"uplevel-orchestrator/internal/handlers"
	"uplevel-orchestrator/internal/pkg/logger"
	"uplevel-orchestrator/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger.Info("Starting Central Orchestrator",
		"environment", cfg.Environment,
		"port", cfg.HTTP.Port)

	stateStore := services.NewStateStore(cfg.Redis, appLogger)
	defer stateStore.Close()

	agentClient := services.NewAgentClient(cfg.Agents, appLogger)
	classifier := services.NewIntentClassifier(appLogger)
	workflowEngine := services.NewWorkflowEngine(agentClient, stateStore, appLogger)
	orchestrator := services.NewOrchestrator(stateStore, agentClient, classifier, workflowEngine, appLogger)

	router := handlers.NewRouter(orchestrator, cfg, appLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		appLogger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down Central Orchestrator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Forced shutdown")
	}

	appLogger.Info("Central Orchestrator stopped")
}
