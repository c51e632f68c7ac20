// ABOUTME: ConversationStore abstracts where chat threads are persisted
// ABOUTME: Open selects the sqlite, charm or redis backend from configuration
package storage

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/logger"
	"github.com/harper/cenly/internal/models"
	"github.com/harper/cenly/internal/storage/charm"
	"github.com/harper/cenly/internal/storage/redis"
	"github.com/harper/cenly/internal/storage/sqlite"
)

// ConversationStore persists the ordered messages of each thread.
// Implementations are safe for concurrent use.
type ConversationStore interface {
	// History returns a thread's messages oldest first; unknown threads are empty
	History(ctx context.Context, threadID string) ([]models.Message, error)
	// Append adds messages to a thread atomically, creating it if needed
	Append(ctx context.Context, threadID string, msgs ...models.Message) error
	// Threads lists stored threads, most recently updated first
	Threads(ctx context.Context) ([]models.ThreadInfo, error)
	// Clear deletes a thread; unknown threads are not an error
	Clear(ctx context.Context, threadID string) error
	Close() error
}

// Syncer is implemented by stores that replicate to a remote service
type Syncer interface {
	Sync() error
}

var (
	_ ConversationStore = (*sqlite.MessageStore)(nil)
	_ ConversationStore = (*charm.Store)(nil)
	_ ConversationStore = (*redis.Store)(nil)
	_ Syncer            = (*charm.Store)(nil)
)

// Sync forces a sync with the remote when the backend has one
func Sync(store ConversationStore) error {
	s, ok := store.(Syncer)
	if !ok {
		return fmt.Errorf("%w: session backend does not sync; set session.backend to charm", models.ErrInvalidInput)
	}
	if err := s.Sync(); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

// Open creates the configured backend
func Open(ctx context.Context, cfg *config.Config, l *log.Logger) (ConversationStore, error) {
	l = logger.OrDiscard(l)

	switch cfg.Session.Backend {
	case config.BackendSQLite, "":
		l.Debug("opening session store", "backend", "sqlite", "path", cfg.Session.DBPath)
		s, err := sqlite.OpenMessageStore(cfg.Session.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendCharm:
		l.Debug("opening session store", "backend", "charm", "host", cfg.Charm.Host, "db", cfg.Charm.DBName)
		s, err := charm.Open(charm.Config{
			Host:     cfg.Charm.Host,
			DBName:   cfg.Charm.DBName,
			AutoSync: cfg.Charm.AutoSync,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		l.Debug("opening session store", "backend", "redis", "addr", cfg.Redis.Addr)
		s, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
