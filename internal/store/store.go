// Package store owns the transaction and category collections. Every mutation
// rewrites the whole affected collection to its key in the backing kv.Store;
// there is no diffing and no cross-process coordination, so two stores sharing
// one backend follow last-write-wins.
package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"pocketbook/internal/core"
	"pocketbook/internal/kv"
	"pocketbook/internal/log"
)

// Storage keys. The JSON shapes under them are the export format too.
const (
	KeyTransactions = "transactions"
	KeyCategories   = "categories"
)

// ChangeNotifier is told about every successful write, e.g. to publish a
// change feed. Errors are logged and otherwise ignored.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, key string, count int) error
}

// IDGenerator returns a fresh identifier for a record created at t.
type IDGenerator func(t time.Time) string

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.newID = g
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithNotifier(n ChangeNotifier) Option {
	return func(s *Store) { s.notifier = n }
}

type Store struct {
	kv       kv.Store
	logger   *slog.Logger
	newID    IDGenerator
	now      func() time.Time
	notifier ChangeNotifier

	mu           sync.Mutex
	transactions []core.Transaction
	categories   []core.Category
	ready        bool
}

func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:         backend,
		logger:     slog.Default(),
		newID:      ULIDGenerator(),
		now:        time.Now,
		categories: DefaultCategories(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.FieldComponent, log.ComponentStore)
	return s
}

// ULIDGenerator returns a generator of lexicographically sortable IDs that stay
// strictly increasing within the same millisecond. Not safe for concurrent use
// on its own; the store calls it under its lock.
func ULIDGenerator() IDGenerator {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func(t time.Time) string {
		return ulid.MustNew(ulid.Timestamp(t), entropy).String()
	}
}

// Initialize loads both collections. A missing or unreadable transaction
// record yields an empty list and a missing or unreadable category record
// yields the built-ins. Read failures are logged, never returned.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		txs  []core.Transaction
		cats []core.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := s.loadTransactions(gctx)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to load transactions, starting empty",
				log.NewFields().WithOperation(log.OpLoad).WithKey(KeyTransactions, -1).WithError(err).ToSlice()...)
			loaded = nil
		}
		txs = loaded
		return nil
	})
	g.Go(func() error {
		loaded, err := s.loadCategories(gctx)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to load categories, using built-ins",
				log.NewFields().WithOperation(log.OpLoad).WithKey(KeyCategories, -1).WithError(err).ToSlice()...)
			loaded = nil
		}
		cats = loaded
		return nil
	})
	_ = g.Wait()

	if txs == nil {
		txs = []core.Transaction{}
	}
	if cats == nil {
		cats = DefaultCategories()
	}

	s.mu.Lock()
	s.transactions = txs
	s.categories = cats
	s.ready = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Store initialized",
		"transactions", len(txs),
		"categories", len(cats))
	return nil
}

func (s *Store) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	data, ok, err := s.kv.Get(ctx, KeyTransactions)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyTransactions, err)
	}
	if !ok {
		return nil, nil
	}
	return decodeTransactions(data)
}

func (s *Store) loadCategories(ctx context.Context) ([]core.Category, error) {
	data, ok, err := s.kv.Get(ctx, KeyCategories)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyCategories, err)
	}
	if !ok {
		return nil, nil
	}
	return decodeCategories(data)
}

func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Transactions returns a snapshot, newest first.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...)
}

func (s *Store) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...)
}

func (s *Store) Transaction(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfTransaction(id); i >= 0 {
		return s.transactions[i], true
	}
	return core.Transaction{}, false
}

func (s *Store) Stats() core.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := core.Stats{Transactions: len(s.transactions)}
	for _, c := range s.categories {
		if c.IsCustom {
			st.CustomCategories++
		}
	}
	return st
}

// Reset erases both keys and returns the store to its first-run state. The
// seeded categories are not written back until the next category change.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear storage",
			log.NewFields().WithOperation(log.OpClear).WithError(err).ToSlice()...)
		return fmt.Errorf("clear storage: %w", err)
	}

	s.transactions = []core.Transaction{}
	s.categories = DefaultCategories()
	s.logger.InfoContext(ctx, "All data cleared")
	return nil
}

// ExportJSON writes the transaction collection in its storage shape, indented
// for humans.
func (s *Store) ExportJSON(w io.Writer) error {
	s.mu.Lock()
	data, err := encodeTransactionsIndent(s.transactions)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// persist writes one collection and notifies. Callers hold s.mu.
func (s *Store) persist(ctx context.Context, key string, data []byte, count int) error {
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist collection",
			log.NewFields().WithOperation(log.OpPersist).WithKey(key, count).WithError(err).ToSlice()...)
		return fmt.Errorf("persist %s: %w", key, err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyChange(ctx, key, count); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish change notification",
				log.NewFields().WithOperation(log.OpPublish).WithKey(key, count).WithError(err).ToSlice()...)
		}
	}
	return nil
}

func (s *Store) persistTransactions(ctx context.Context) error {
	data, err := encodeTransactions(s.transactions)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	return s.persist(ctx, KeyTransactions, data, len(s.transactions))
}

func (s *Store) persistCategories(ctx context.Context) error {
	data, err := encodeCategories(s.categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	return s.persist(ctx, KeyCategories, data, len(s.categories))
}
