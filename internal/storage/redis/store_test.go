package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/cenly/internal/models"
	"github.com/harper/cenly/internal/storage/storagetest"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), Options{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		s, _ := newTestStore(t, 0)
		return s
	})
}

func TestStore_KeyLayout(t *testing.T) {
	s, mr := newTestStore(t, 0)
	require.NoError(t, s.Append(context.Background(), "first", models.NewMessage(models.RoleHuman, "hi")))

	assert.True(t, mr.Exists("cenly:thread:first:messages"))
	assert.True(t, mr.Exists("cenly:thread:first:meta"))
	members, err := mr.ZMembers("cenly:threads")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, members)
}

func TestStore_TTLExpiresThreads(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "first", models.NewMessage(models.RoleHuman, "hi")))
	assert.Equal(t, time.Hour, mr.TTL("cenly:thread:first:messages"))

	mr.FastForward(2 * time.Hour)

	msgs, err := s.History(ctx, "first")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	threads, err := s.Threads(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads, "expired threads are pruned from the listing")
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}
