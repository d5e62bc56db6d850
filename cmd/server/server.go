package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CapIot.webnode/internal/config"
	"CapIot.webnode/internal/controller"
	"CapIot.webnode/internal/logger"
	"CapIot.webnode/internal/publisher"
	"CapIot.webnode/internal/repository"
	"CapIot.webnode/internal/routes"
	"CapIot.webnode/internal/service"
)

const (
	storageOpenTimeout = 15 * time.Second
	shutdownTimeout    = 20 * time.Second
)

type application struct {
	cfg     config.Config
	logger  *slog.Logger
	handler http.Handler
}

func (app *application) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + app.cfg.Port,
		Handler:           app.handler,
		IdleTimeout:       30 * time.Second,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Servidor corriendo", "port", app.cfg.Port, "backend", app.cfg.StorageBackend)
		base := "http://localhost:" + app.cfg.Port
		app.logger.Info("Endpoints disponibles",
			"create", "POST "+base+"/data",
			"list", "GET "+base+"/data",
			"latest", "GET "+base+"/data/latest",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("Shutdown signal received, shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("Graceful shutdown failed, forcing close", "error", err)
			_ = srv.Close()
		}
		return <-errCh

	case err := <-errCh:
		return err
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)
	if !cfg.EnvFileLoaded {
		log.Info("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, storageOpenTimeout)
	repo, err := repository.Open(openCtx, cfg, log)
	cancel()
	if err != nil && cfg.StorageRequired {
		return fmt.Errorf("storage required but unavailable: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Close(closeCtx); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	var pub publisher.Publisher = publisher.Nop{}
	if cfg.MQTTBroker != "" {
		mqttPub, err := publisher.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, log)
		if err != nil {
			log.Warn("MQTT publishing disabled", "broker", cfg.MQTTBroker, "error", err)
		} else {
			log.Info("Publishing readings over MQTT", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
			pub = mqttPub
		}
	}
	defer pub.Close()

	svc := service.NewReadingService(repo, pub, cfg.QueryMaxLimit, log)
	ctrl := controller.NewReadingController(svc, log)

	app := &application{
		cfg:     cfg,
		logger:  log,
		handler: routes.WithCORS(routes.SetupRouter(ctrl, log)),
	}
	if err := app.serve(ctx); err != nil {
		return err
	}

	log.Info("Shutdown complete")
	return nil
}
