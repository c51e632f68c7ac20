// Package storagetest holds the behaviour every conversation store backend must share.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/cenly/internal/models"
)

// Store mirrors storage.ConversationStore without importing it
type Store interface {
	History(ctx context.Context, threadID string) ([]models.Message, error)
	Append(ctx context.Context, threadID string, msgs ...models.Message) error
	Threads(ctx context.Context) ([]models.ThreadInfo, error)
	Clear(ctx context.Context, threadID string) error
	Close() error
}

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("unknown thread is empty", func(t *testing.T) {
		s := newStore(t)
		msgs, err := s.History(context.Background(), "nope")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("append and read back in order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Append(ctx, "first",
			models.NewMessage(models.RoleHuman, "What's our sales trend?"),
			models.NewMessage(models.RoleAI, "Revenue rose 12% in Q3."),
		))
		require.NoError(t, s.Append(ctx, "first",
			models.NewMessage(models.RoleHuman, "And inventory?"),
			models.NewMessage(models.RoleAI, "Stable."),
		))

		msgs, err := s.History(ctx, "first")
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, models.RoleHuman, msgs[0].Role)
		assert.Equal(t, "What's our sales trend?", msgs[0].Content)
		assert.Equal(t, models.RoleAI, msgs[1].Role)
		assert.Equal(t, "And inventory?", msgs[2].Content)
		assert.Equal(t, "Stable.", msgs[3].Content)
		assert.False(t, msgs[0].CreatedAt.IsZero())
	})

	t.Run("threads are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Append(ctx, "a", models.NewMessage(models.RoleHuman, "one")))
		require.NoError(t, s.Append(ctx, "b", models.NewMessage(models.RoleHuman, "two")))

		a, err := s.History(ctx, "a")
		require.NoError(t, err)
		require.Len(t, a, 1)
		assert.Equal(t, "one", a[0].Content)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.Append(ctx, "", models.NewMessage(models.RoleHuman, "hi"))
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		err = s.Append(ctx, "t", models.NewMessage(models.RoleHuman, "  "))
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		err = s.Append(ctx, "t", models.Message{Role: "robot", Content: "beep"})
		assert.Error(t, err)

		msgs, err := s.History(ctx, "t")
		require.NoError(t, err)
		assert.Empty(t, msgs, "failed appends must not persist anything")
	})

	t.Run("lists threads newest first with counts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Append(ctx, "old", models.NewMessage(models.RoleHuman, "hi"), models.NewMessage(models.RoleAI, "hello")))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, s.Append(ctx, "new", models.NewMessage(models.RoleHuman, "hey")))

		threads, err := s.Threads(ctx)
		require.NoError(t, err)
		require.Len(t, threads, 2)
		assert.Equal(t, "new", threads[0].ID)
		assert.Equal(t, 1, threads[0].MessageCount)
		assert.Equal(t, "old", threads[1].ID)
		assert.Equal(t, 2, threads[1].MessageCount)
		assert.False(t, threads[1].CreatedAt.After(threads[1].UpdatedAt))
	})

	t.Run("clear removes a thread", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Append(ctx, "gone", models.NewMessage(models.RoleHuman, "bye")))
		require.NoError(t, s.Append(ctx, "kept", models.NewMessage(models.RoleHuman, "stay")))
		require.NoError(t, s.Clear(ctx, "gone"))
		require.NoError(t, s.Clear(ctx, "never-existed"))

		msgs, err := s.History(ctx, "gone")
		require.NoError(t, err)
		assert.Empty(t, msgs)

		threads, err := s.Threads(ctx)
		require.NoError(t, err)
		require.Len(t, threads, 1)
		assert.Equal(t, "kept", threads[0].ID)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Append(ctx, "busy",
					models.NewMessage(models.RoleHuman, "q"),
					models.NewMessage(models.RoleAI, "a")))
			}()
		}
		wg.Wait()

		msgs, err := s.History(ctx, "busy")
		require.NoError(t, err)
		assert.Len(t, msgs, 16)
		for i := 0; i < len(msgs); i += 2 {
			assert.Equal(t, models.RoleHuman, msgs[i].Role, "pairs must not interleave")
			assert.Equal(t, models.RoleAI, msgs[i+1].Role)
		}
	})
}
