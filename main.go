package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/config"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/logger"
	"github.com/FACorreiaa/go-pubcrawl/internal/routes"
	"github.com/FACorreiaa/go-pubcrawl/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogEncoding, zap.String("service", cfg.Observability.ServiceName))
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := server.InitObservability(cfg.Observability, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			lg.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	srv, err := server.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer srv.Close()

	router := server.SetupRouter(cfg, routes.Dependencies{Pool: srv.GetDBPool()}, lg)
	srv.SetRouter(router)

	if pprofSrv := server.StartPprofServer(cfg.Observability.PprofAddr, lg); pprofSrv != nil {
		defer func() { _ = pprofSrv.Close() }()
	}

	httpServer := srv.HTTPServer()

	done := make(chan struct{})
	go server.GracefulShutdown(ctx, httpServer, lg, done)

	lg.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error("Server error", zap.Error(err))
		stop()
		<-done
		return err
	}

	<-done
	lg.Info("Graceful shutdown complete")
	return nil
}
