// ABOUTME: Tests for the SQLite message store
// ABOUTME: Runs the shared store behaviour plus file persistence checks

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/harper/cenly/internal/models"
	"github.com/harper/cenly/internal/storage/sqlite"
	"github.com/harper/cenly/internal/storage/storagetest"
)

func TestMessageStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		db, err := sqlite.OpenInMemory()
		if err != nil {
			t.Fatalf("OpenInMemory() error = %v", err)
		}
		s := sqlite.NewMessageStore(db)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMessageStore_FileBacked(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		s, err := sqlite.OpenMessageStore(filepath.Join(t.TempDir(), "chat_history.db"))
		if err != nil {
			t.Fatalf("OpenMessageStore() error = %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMessageStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.db")
	ctx := context.Background()

	s, err := sqlite.OpenMessageStore(path)
	if err != nil {
		t.Fatalf("OpenMessageStore() error = %v", err)
	}
	err = s.Append(ctx, "first",
		models.NewMessage(models.RoleHuman, "What's our sales trend?"),
		models.NewMessage(models.RoleAI, "Up."))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = sqlite.OpenMessageStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = s.Close() }()

	msgs, err := s.History(ctx, "first")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "Up." {
		t.Errorf("History() after reopen = %+v", msgs)
	}
}
