package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	v1 "github.com/mmalewski/kartotherian/internal/infrastructure/http/v1"
	"github.com/mmalewski/kartotherian/internal/infrastructure/http/v1/handler"
	"github.com/mmalewski/kartotherian/internal/store"
	"github.com/mmalewski/kartotherian/internal/usecase"
	"github.com/mmalewski/kartotherian/pkg/config"
	"github.com/mmalewski/kartotherian/pkg/http_server"
	"github.com/mmalewski/kartotherian/pkg/logger"
	"github.com/mmalewski/kartotherian/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger.Level)

	l.Info("starting tile store service")

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	tileStore, err := store.New(store.Config{
		Driver:          cfg.Store.Driver,
		Host:            cfg.Store.Host,
		Port:            cfg.Store.Port,
		User:            cfg.Store.User,
		Password:        cfg.Store.Password,
		SSLMode:         cfg.Store.SSLMode,
		Database:        cfg.Store.Database,
		Table:           cfg.Store.Table,
		CreateIfMissing: cfg.Store.CreateIfMissing,
		MinZoom:         cfg.Store.MinZoom,
		MaxZoom:         cfg.Store.MaxZoom,
		MaxBatchSize:    cfg.Store.MaxBatchSize,
	}, l)
	if err != nil {
		l.Fatal("failed to open tile store", "error", err)
	}
	defer func() {
		if err := tileStore.Close(); err != nil {
			l.Error("failed to close tile store", "error", err)
		}
	}()

	tileUseCase := usecase.NewTileUseCase(tileStore, l)

	validate := validator.New()
	h := handler.NewHandler(validate, tileUseCase)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	server := http_server.NewServer(cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "port", cfg.HTTP.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Fatal("server forced to shutdown", "error", err)
	}

	// Whatever is still buffered goes out before the store closes.
	if err := tileStore.Flush(ctx); err != nil {
		l.Error("final flush failed", "error", err)
	}

	l.Info("server stopped")
}
