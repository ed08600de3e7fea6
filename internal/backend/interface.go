package backend

import (
	"context"
	"time"

	"pocketbook/internal/kv"
	"pocketbook/internal/store"
)

// CleanupFunc releases backend resources
type CleanupFunc func() error

// BackendResult is a ready kv.Store plus what the store needs around it.
// Notifier is nil when no change feed is configured.
type BackendResult struct {
	Store    kv.Store
	Notifier store.ChangeNotifier
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLitePath string
	CacheSize  int
	CacheTTL   time.Duration

	// Change feed, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
