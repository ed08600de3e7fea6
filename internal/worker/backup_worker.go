// Package worker keeps a second key-value store in step with the primary one
// by following the change feed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketbook/internal/amqp"
	"pocketbook/internal/kv"
	"pocketbook/internal/log"
	"pocketbook/internal/sheets"
	"pocketbook/internal/store"
	"pocketbook/internal/trace"
)

// ChangeConsumer delivers change messages until ctx is done.
type ChangeConsumer interface {
	ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error
}

// BackupWorker copies changed keys from primary to backup and, when an
// exporter is set, mirrors the transactions to a spreadsheet.
type BackupWorker struct {
	primary  kv.Store
	backup   kv.Store
	exporter sheets.TransactionExporter
	keys     []string
	logger   *slog.Logger

	// serialises writes to backup
	mu sync.Mutex

	copied    atomic.Int64
	snapshots atomic.Int64
}

func NewBackupWorker(primary, backup kv.Store, exporter sheets.TransactionExporter, logger *slog.Logger) *BackupWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupWorker{
		primary:  primary,
		backup:   backup,
		exporter: exporter,
		keys:     []string{store.KeyTransactions, store.KeyCategories},
		logger:   logger.With(log.FieldComponent, log.ComponentWorker),
	}
}

// HandleChange processes one change message.
// The message ID becomes the trace ID of everything logged while handling it.
func (w *BackupWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) (err error) {
	ctx, span := trace.Start(trace.WithID(ctx, msg.ID), w.logger, "handle_change",
		log.FieldKey, msg.Key, log.FieldCount, msg.Count)
	defer func() { span.End(err) }()

	if msg.Key == amqp.SnapshotKey {
		return w.Snapshot(ctx)
	}

	if err := w.copyKey(ctx, msg.Key); err != nil {
		return err
	}
	if msg.Key == store.KeyTransactions {
		return w.export(ctx)
	}
	return nil
}

func (w *BackupWorker) copyKey(ctx context.Context, key string) error {
	value, ok, err := w.primary.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s from primary: %w", key, err)
	}
	if !ok {
		w.logger.DebugContext(ctx, "Key missing in primary, nothing to copy", log.FieldKey, key)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.backup.Set(ctx, key, value); err != nil {
		return fmt.Errorf("write %s to backup: %w", key, err)
	}
	w.copied.Add(1)
	return nil
}

// Snapshot copies every known key. When the primary holds none of them it
// was cleared, so the backup is cleared too.
func (w *BackupWorker) Snapshot(ctx context.Context) error {
	values := make([][]byte, len(w.keys))
	present := make([]bool, len(w.keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range w.keys {
		g.Go(func() error {
			v, ok, err := w.primary.Get(gctx, key)
			if err != nil {
				return fmt.Errorf("read %s from primary: %w", key, err)
			}
			values[i], present[i] = v, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	found := false
	var errs []error
	for i, key := range w.keys {
		if !present[i] {
			continue
		}
		found = true
		if err := w.backup.Set(ctx, key, values[i]); err != nil {
			errs = append(errs, fmt.Errorf("write %s to backup: %w", key, err))
		}
	}
	if !found {
		if err := w.backup.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear backup: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	w.snapshots.Add(1)
	w.logger.InfoContext(ctx, "Backup snapshot complete", "cleared", !found)
	return nil
}

func (w *BackupWorker) export(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}
	txs, err := store.ReadTransactions(ctx, w.primary)
	if err != nil {
		return err
	}
	if _, err := w.exporter.ExportTransactions(ctx, txs); err != nil {
		return fmt.Errorf("export transactions: %w", err)
	}
	return nil
}

// Run takes an initial snapshot, then follows the change feed and repeats the
// snapshot every interval as a fallback for lost messages. It returns when ctx
// is done or the consumer fails.
func (w *BackupWorker) Run(ctx context.Context, consumer ChangeConsumer, interval time.Duration) error {
	if err := w.Snapshot(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Initial snapshot failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeChanges(gctx, w.HandleChange)
	})
	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := w.Snapshot(gctx); err != nil {
						w.logger.ErrorContext(gctx, "Periodic snapshot failed", log.FieldError, err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		// shutdown requested
		return nil
	}
	return err
}

// Stats reports how many keys were copied and snapshots taken.
func (w *BackupWorker) Stats() (copied, snapshots int64) {
	return w.copied.Load(), w.snapshots.Load()
}
