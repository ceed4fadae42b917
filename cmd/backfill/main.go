package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"attendsync/internal/platform/bootstrap"
	"attendsync/internal/platform/config"
	"attendsync/internal/platform/logger"
	"attendsync/internal/sync/backfill"
	"attendsync/internal/sync/collections"
	dErrors "attendsync/pkg/domain-errors"
	pstrings "attendsync/pkg/platform/strings"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "backfill",
		Short:        "Seed the relational store from the document store",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newMigrateCommand())
	return root
}

type runFlags struct {
	collections    []string
	alsoDiscovered bool
	batchSize      int
	jsonReport     bool
}

func newRunCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay document collections into Postgres",
		Long: "Streams every document of the selected collections and upserts them into Postgres in\n" +
			"batches. Versions only move forward, so the command can be re-run after a failure.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := resolveCollections(f.collections, f.alsoDiscovered)
			if err != nil {
				return err
			}
			return runBackfill(cmd, names, f)
		},
	}
	cmd.Flags().StringSliceVar(&f.collections, "collections", collections.Core(), "comma separated collections to backfill")
	cmd.Flags().BoolVar(&f.alsoDiscovered, "also-discovered", false, "also backfill the passthrough collections ("+fmt.Sprint(collections.Generic())+")")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "rows per transaction (default from BACKFILL_BATCH_SIZE, max 500)")
	cmd.Flags().BoolVar(&f.jsonReport, "json", false, "print the report as JSON")
	return cmd
}

// resolveCollections normalizes the requested names and checks them against
// the allow-list before any store is opened.
func resolveCollections(requested []string, alsoDiscovered bool) ([]string, error) {
	names := pstrings.SplitList(requested...)
	if alsoDiscovered {
		names = pstrings.DedupeAndTrim(append(names, collections.Generic()...))
	}
	if len(names) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no collections selected")
	}
	for _, name := range names {
		if _, err := collections.Lookup(name); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func runBackfill(cmd *cobra.Command, names []string, f runFlags) error {
	ctx := cmd.Context()
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	deps, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(context.WithoutCancel(ctx)) }()

	batchSize := cfg.Backfill.BatchSize
	if f.batchSize > 0 {
		batchSize = f.batchSize
	}
	job, err := backfill.New(deps.Docs, deps.Store,
		backfill.WithLogger(log),
		backfill.WithMetrics(deps.Metrics),
		backfill.WithBatchSize(batchSize),
	)
	if err != nil {
		return err
	}

	report, runErr := job.Run(ctx, names)
	if report != nil {
		printReport(cmd, report, f.jsonReport)
	}
	if runErr != nil {
		log.ErrorContext(ctx, "backfill failed", "error", runErr)
		return runErr
	}
	return nil
}

func printReport(cmd *cobra.Command, report *backfill.Report, asJSON bool) {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}
	for _, c := range report.Collections {
		fmt.Fprintf(out, "[%s] processed=%d skipped=%d\n", c.Name, c.Processed, c.Skipped)
	}
	fmt.Fprintf(out, "total processed=%d skipped=%d\n", report.Processed, report.Skipped)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the relational schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Environment, cfg.LogLevel)
			deps, err := bootstrap.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(context.WithoutCancel(ctx)) }()

			if err := deps.Store.Migrate(ctx); err != nil {
				return err
			}
			log.InfoContext(ctx, "schema applied")
			return nil
		},
	}
}
