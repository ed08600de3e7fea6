package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pocketbook/internal/amqp"
	"pocketbook/internal/cache"
	"pocketbook/internal/kv"
	"pocketbook/internal/kv/memory"
	"pocketbook/internal/log"
	"pocketbook/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachChangeFeed(ctx, config, result)
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Info("Initialized memory backend")
	return &BackendResult{Store: memory.New()}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLitePath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	var (
		store   kv.Store = repo
		manager *cache.Manager
	)
	if config.CacheSize > 0 {
		lru := cache.NewLRUCache[[]byte](config.CacheSize, config.CacheTTL)
		store = cache.NewKVStore(repo, lru, f.logger)
		manager = cache.NewManager(f.logger)
		manager.Register(lru)
		manager.StartCleanup(context.WithoutCancel(ctx), config.CacheTTL)
	}

	f.logger.Info("Initialized SQLite backend",
		log.FieldPath, config.SQLitePath,
		"cache_size", config.CacheSize)

	return &BackendResult{
		Store: store,
		Cleanup: func() error {
			if manager != nil {
				manager.Stop()
			}
			return repo.Close()
		},
	}, nil
}

// attachChangeFeed connects the AMQP publisher when configured. A broker that
// cannot be reached only disables the feed.
func (f *DefaultFactory) attachChangeFeed(ctx context.Context, config Config, result *BackendResult) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change feed", log.FieldError, err)
		return
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Notifier = client
	previous := result.Cleanup
	result.Cleanup = func() error {
		var errs []error
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
		if previous != nil {
			if err := previous(); err != nil {
				errs = append(errs, fmt.Errorf("storage: %w", err))
			}
		}
		return errors.Join(errs...)
	}
}
