// ABOUTME: Conversation store on Charm KV with optional cloud sync
// ABOUTME: Each thread is one JSON record under thread:<id>; SSH key auth comes from charm
package charm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"

	"github.com/harper/cenly/internal/models"
)

// ThreadPrefix namespaces thread records in the KV
const ThreadPrefix = "thread:"

// Config holds charm client configuration
type Config struct {
	Host     string
	DBName   string
	AutoSync bool
}

// KV is the subset of charm's kv.KV the store uses
type KV interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
	Close() error
}

// Store keeps conversation threads in a KV database
type Store struct {
	kv       KV
	autoSync bool
	mu       sync.Mutex
}

type threadRecord struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  []models.Message `json:"messages"`
}

// Open opens the named charm KV database, pulling remote data when auto sync is on
func Open(cfg Config) (*Store, error) {
	if cfg.Host != "" {
		if err := os.Setenv("CHARM_HOST", cfg.Host); err != nil {
			return nil, fmt.Errorf("failed to set CHARM_HOST: %w", err)
		}
	}

	db, err := kv.OpenWithDefaults(cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}
	return New(db, cfg.AutoSync), nil
}

// New wraps an open KV
func New(db KV, autoSync bool) *Store {
	s := &Store{kv: db, autoSync: autoSync}
	if autoSync {
		_ = db.Sync()
	}
	return s
}

// UserID returns the charm account id behind the local SSH key
func UserID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// ThreadKey generates the KV key for a thread
func ThreadKey(threadID string) string {
	return ThreadPrefix + threadID
}

// History returns a thread's messages, oldest first
func (s *Store) History(_ context.Context, threadID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(threadID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []models.Message{}, nil
	}
	return rec.Messages, nil
}

// Append adds messages to a thread, creating it on first use
func (s *Store) Append(_ context.Context, threadID string, msgs ...models.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return fmt.Errorf("%w: thread id cannot be empty", models.ErrInvalidInput)
	}
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(threadID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if rec == nil {
		rec = &threadRecord{ID: threadID, CreatedAt: now}
	}
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		rec.Messages = append(rec.Messages, m)
	}
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	if err := s.kv.Set([]byte(ThreadKey(threadID)), data); err != nil {
		return fmt.Errorf("failed to set thread %s: %w", threadID, err)
	}
	s.syncIfEnabled()
	return nil
}

// Threads lists stored threads, most recently updated first
func (s *Store) Threads(_ context.Context) ([]models.ThreadInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	threads := []models.ThreadInfo{}
	for _, key := range keys {
		k := string(key)
		if !strings.HasPrefix(k, ThreadPrefix) {
			continue
		}
		rec, err := s.load(strings.TrimPrefix(k, ThreadPrefix))
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		threads = append(threads, models.ThreadInfo{
			ID:           rec.ID,
			MessageCount: len(rec.Messages),
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		})
	}

	slices.SortFunc(threads, func(a, b models.ThreadInfo) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return threads, nil
}

// Clear deletes a thread
func (s *Store) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete([]byte(ThreadKey(threadID))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	s.syncIfEnabled()
	return nil
}

// Sync manually triggers a sync with the cloud
func (s *Store) Sync() error {
	return s.kv.Sync()
}

// Close closes the KV database
func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) load(threadID string) (*threadRecord, error) {
	data, err := s.kv.Get([]byte(ThreadKey(threadID)))
	if errors.Is(err, badger.ErrKeyNotFound) || (err == nil && data == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}

	var rec threadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", threadID, err)
	}
	return &rec, nil
}

func (s *Store) syncIfEnabled() {
	if s.autoSync {
		_ = s.kv.Sync()
	}
}
