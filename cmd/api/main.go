package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketera/internal/api"
	"ticketera/internal/config"
	"ticketera/internal/jobs"
	"ticketera/internal/logger"
	"ticketera/internal/validation"
)

func main() {
	// Проверка контракта бэкенда вместо запуска сервера
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		os.Exit(validation.Run(os.Args[2:]))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := api.NewServer(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	// Сессия с истекшим токеном сбрасывается в фоне
	expiry := jobs.NewSessionExpiryJob(server.Services().Auth, cfg.SessionCheckInterval)
	expiry.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.GetRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Port, "backend", cfg.Backend.BaseURL, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	expiry.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		log.Error("Error during cleanup", "error", err)
	}

	log.Info("Server stopped")
}
