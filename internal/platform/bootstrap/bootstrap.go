// Package bootstrap builds the process-wide dependencies once at startup and
// tears them down on shutdown.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"attendsync/internal/docstore"
	"attendsync/internal/platform/config"
	"attendsync/internal/platform/metrics"
	"attendsync/internal/platform/postgres"
	"attendsync/internal/reconcile"
	"attendsync/internal/sync/store"
)

// Deps are shared read-only after Build returns.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	DB       *sql.DB
	Store    *store.PostgresStore
	Docs     docstore.Store
	Queue    reconcile.Queue
}

type options struct {
	queue bool
}

type Option func(o *options)

// WithReconcileQueue also opens the reconciliation queue. Only the server
// needs it; the backfill job never compensates.
func WithReconcileQueue() Option {
	return func(o *options) {
		o.queue = true
	}
}

// Build opens every dependency. On failure whatever was already opened is
// closed again.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (deps *Deps, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d := &Deps{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.New(reg),
	}
	defer func() {
		if err != nil {
			_ = d.Close(context.WithoutCancel(ctx))
		}
	}()

	d.DB, err = postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	d.Store = store.NewPostgres(d.DB, cfg.Database.TxTimeout)

	d.Docs, err = docstore.Open(ctx, cfg.DocStore)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	if o.queue {
		d.Queue, err = reconcile.Open(ctx, cfg.Reconcile, logger, d.Metrics)
		if err != nil {
			return nil, fmt.Errorf("open reconciliation queue: %w", err)
		}
	}

	logger.InfoContext(ctx, "dependencies ready",
		"docstore", cfg.DocStore.Backend,
		"reconcile_queue", cfg.Reconcile.Backend,
	)
	return d, nil
}

// Close releases everything Build opened, in reverse order.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Queue != nil {
		if err := d.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reconciliation queue: %w", err))
		}
	}
	if d.Docs != nil {
		if err := d.Docs.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close document store: %w", err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ready reports whether both stores answer.
func (d *Deps) Ready(ctx context.Context) error {
	if err := d.Store.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := d.Docs.Ping(ctx); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	return nil
}
