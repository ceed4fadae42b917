package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendsync/internal/platform/bootstrap"
	"attendsync/internal/platform/config"
	"attendsync/internal/platform/httpserver"
	"attendsync/internal/platform/logger"
	"attendsync/internal/sync/service"
	httptransport "attendsync/internal/transport/http"
)

const closeTimeout = 10 * time.Second

// main wires dependencies, exposes the HTTP router, and keeps the server
// lifecycle small. Business logic lives in internal/sync.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, log, bootstrap.WithReconcileQueue())
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			log.Error("shutdown cleanup failed", "error", err)
		}
	}()

	svc, err := service.New(deps.Store, deps.Docs,
		service.WithLogger(log),
		service.WithMetrics(deps.Metrics),
		service.WithReconciler(deps.Queue),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  deps.Metrics,
		Gatherer: deps.Registry,
		Ready:    deps,
		Sync:     svc,
	})
	log.Info("starting attendsync", slog.String("env", cfg.Environment))
	return httpserver.Serve(ctx, httpserver.New(cfg.Addr, router), log)
}
