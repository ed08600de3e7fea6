// Command pocketbook-backup follows the change feed and mirrors the ledger
// into a second SQLite file, optionally exporting transactions to Google
// Sheets as they change.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pocketbook/internal/amqp"
	"pocketbook/internal/cli"
	"pocketbook/internal/config"
	"pocketbook/internal/log"
	"pocketbook/internal/sheets"
	"pocketbook/internal/sheets/google"
	"pocketbook/internal/storage"
	"pocketbook/internal/worker"
)

func main() {
	ctx := context.Background()

	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(cfg.Log, log.ComponentWorker, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "Starting pocketbook-backup")

	if err := cfg.Validate(); err != nil {
		logger.ErrorContext(ctx, "Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.ValidateBackup(); err != nil {
		logger.ErrorContext(ctx, "Backup configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.ErrorContext(ctx, "Backup worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "pocketbook-backup stopped")
}

func run(parent context.Context, cfg *config.Config, logger *log.Logger) error {
	var cleanups []func() error
	defer func() {
		_ = cli.RunCleanup(logger, 10*time.Second, cleanups...)
	}()

	// The primary is opened without the read cache: another process writes it.
	primary, err := storage.NewSQLiteRepository(cfg.Storage.SQLitePath, logger.Slog())
	if err != nil {
		return err
	}
	cleanups = append(cleanups, primary.Close)

	backup, err := storage.NewSQLiteRepository(cfg.Backup.SQLitePath, logger.Slog())
	if err != nil {
		return err
	}
	cleanups = append(cleanups, backup.Close)

	exporter, err := newExporter(parent, cfg, logger)
	if err != nil {
		return err
	}

	amqpClient, err := amqp.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, logger.Slog())
	if err != nil {
		return err
	}
	// closed first so no handler runs against a closed database
	cleanups = append([]func() error{amqpClient.Close}, cleanups...)

	ctx, cancel := cli.ShutdownContext(parent, logger)
	defer cancel()

	w := worker.NewBackupWorker(primary, backup, exporter, logger.Slog())
	err = w.Run(ctx, amqpClient, cfg.Backup.SnapshotInterval)

	copied, snapshots := w.Stats()
	logger.InfoContext(parent, "Backup worker finished", "copied", copied, "snapshots", snapshots)
	return err
}

// newExporter returns nil when no spreadsheet is configured.
func newExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.TransactionExporter, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		logger.InfoContext(ctx, "Google Sheets export disabled")
		return nil, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	client, err := google.New(ctx, google.FromAppConfig(cfg.Sheets, loc), logger.Slog())
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Google Sheets export enabled", log.FieldSheetsRef, cfg.Sheets.SpreadsheetID)
	return client, nil
}
