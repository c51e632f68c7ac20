// ABOUTME: MessageStore persists conversation threads in SQLite
// ABOUTME: Appends are transactional; history is returned in insertion order
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harper/cenly/internal/models"
)

// MessageStore handles thread and message persistence
type MessageStore struct {
	db *DB
}

// NewMessageStore creates a new MessageStore
func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

// OpenMessageStore opens the database at path and wraps it in a MessageStore
func OpenMessageStore(path string) (*MessageStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewMessageStore(db), nil
}

// History returns every message of a thread, oldest first. Unknown threads are empty.
func (s *MessageStore) History(ctx context.Context, threadID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE thread_id = ?
		ORDER BY id ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []models.Message{}
	for rows.Next() {
		var (
			m    models.Message
			role string
			ts   int64
		)
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		m.CreatedAt = time.Unix(0, ts).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Append adds messages to a thread, creating the thread on first use
func (s *MessageStore) Append(ctx context.Context, threadID string, msgs ...models.Message) error {
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

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixNano()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, threadID, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	for _, m := range msgs {
		created := m.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (thread_id, role, content, created_at)
			VALUES (?, ?, ?, ?)
		`, threadID, string(m.Role), m.Content, created.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	return tx.Commit()
}

// Threads lists stored threads, most recently updated first
func (s *MessageStore) Threads(ctx context.Context) ([]models.ThreadInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.created_at, t.updated_at, COUNT(m.id)
		FROM threads t
		LEFT JOIN messages m ON m.thread_id = t.id
		GROUP BY t.id
		ORDER BY t.updated_at DESC, t.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	threads := []models.ThreadInfo{}
	for rows.Next() {
		var (
			info             models.ThreadInfo
			created, updated int64
		)
		if err := rows.Scan(&info.ID, &created, &updated, &info.MessageCount); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(0, created).UTC()
		info.UpdatedAt = time.Unix(0, updated).UTC()
		threads = append(threads, info)
	}
	return threads, rows.Err()
}

// Clear deletes a thread and its messages. Clearing an unknown thread is not an error.
func (s *MessageStore) Clear(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database
func (s *MessageStore) Close() error {
	return s.db.Close()
}
