package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"it-asset-manager-api/internal"
	"it-asset-manager-api/internal/config"
	"it-asset-manager-api/internal/logging"
	"it-asset-manager-api/pkg/importer"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real environment variables win
	envErr := godotenv.Load()

	cfg, err := config.LoadAndValidate()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}

	log := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.WithError(envErr).Warn("Could not read .env file")
	}

	if _, err := importer.LoadMapping(cfg.ImportMappingFile); err != nil {
		log.WithError(err).Fatal("Invalid import mapping")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := internal.OpenStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open asset store")
	}

	srv := internal.NewServer(cfg, st, log)
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv,
	}

	log.WithFields(logrus.Fields{
		"addr":    cfg.Addr(),
		"driver":  cfg.StoreDriver,
		"dialect": cfg.DBDialect,
		"metrics": cfg.EnableMetrics,
		"swagger": cfg.EnableSwagger,
	}).Info("Starting IT asset manager API")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Server stopped")
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown did not finish")
	}
	if err := srv.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to close asset store")
	}
}
