// ABOUTME: Conversation store on Redis: a JSON message list per thread plus a recency index
// ABOUTME: Threads optionally expire after a TTL that is refreshed on every append
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/harper/cenly/internal/models"
)

const defaultPrefix = "cenly"

// Options configures the redis connection and key layout
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Store keeps threads under <prefix>:thread:<id>:messages and :meta
type Store struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
}

// Open connects and pings the server
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return New(client, opts.TTL, opts.Prefix), nil
}

// New wraps an existing client
func New(client *goredis.Client, ttl time.Duration, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, ttl: ttl, prefix: prefix}
}

func (s *Store) messagesKey(id string) string {
	return fmt.Sprintf("%s:thread:%s:messages", s.prefix, id)
}

func (s *Store) metaKey(id string) string {
	return fmt.Sprintf("%s:thread:%s:meta", s.prefix, id)
}

func (s *Store) threadsKey() string {
	return s.prefix + ":threads"
}

// History returns a thread's messages, oldest first
func (s *Store) History(ctx context.Context, threadID string) ([]models.Message, error) {
	vals, err := s.client.LRange(ctx, s.messagesKey(threadID), 0, -1).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}

	msgs := make([]models.Message, 0, len(vals))
	for _, v := range vals {
		var m models.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message in %s: %w", threadID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Append pushes messages atomically and refreshes the thread's recency and TTL
func (s *Store) Append(ctx context.Context, threadID string, msgs ...models.Message) error {
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

	now := time.Now().UTC()
	values := make([]any, len(msgs))
	for i, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values[i] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, s.messagesKey(threadID), values...)
		pipe.HSetNX(ctx, s.metaKey(threadID), "created_at", now.UnixNano())
		pipe.HSet(ctx, s.metaKey(threadID), "updated_at", now.UnixNano())
		pipe.ZAdd(ctx, s.threadsKey(), goredis.Z{Score: float64(now.UnixMicro()), Member: threadID})
		if s.ttl > 0 {
			pipe.Expire(ctx, s.messagesKey(threadID), s.ttl)
			pipe.Expire(ctx, s.metaKey(threadID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to thread %s: %w", threadID, err)
	}
	return nil
}

// Threads lists threads most recently updated first, pruning any that expired
func (s *Store) Threads(ctx context.Context) ([]models.ThreadInfo, error) {
	ids, err := s.client.ZRevRange(ctx, s.threadsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	threads := make([]models.ThreadInfo, 0, len(ids))
	for _, id := range ids {
		count, err := s.client.LLen(ctx, s.messagesKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to count thread %s: %w", id, err)
		}
		if count == 0 {
			_ = s.client.ZRem(ctx, s.threadsKey(), id).Err()
			continue
		}

		meta, err := s.client.HGetAll(ctx, s.metaKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read thread %s: %w", id, err)
		}
		threads = append(threads, models.ThreadInfo{
			ID:           id,
			MessageCount: int(count),
			CreatedAt:    parseNanos(meta["created_at"]),
			UpdatedAt:    parseNanos(meta["updated_at"]),
		})
	}
	return threads, nil
}

// Clear deletes a thread
func (s *Store) Clear(ctx context.Context, threadID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.messagesKey(threadID), s.metaKey(threadID))
		pipe.ZRem(ctx, s.threadsKey(), threadID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	return nil
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}

func parseNanos(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
