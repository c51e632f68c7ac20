// ABOUTME: Tests for the backend factory and thread export
// ABOUTME: Verifies sqlite and redis selection and the three export formats

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"gopkg.in/yaml.v3"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Session: config.SessionConfig{
			Backend: config.BackendSQLite,
			DBPath:  filepath.Join(t.TempDir(), "nested", "chat_history.db"),
		},
	}
}

func TestOpen_SQLite(t *testing.T) {
	cfg := testConfig(t)

	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(cfg.Session.DBPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Session.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()

	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Append(context.Background(), "first", models.NewMessage(models.RoleHuman, "hi")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !mr.Exists("cenly:thread:first:messages") {
		t.Error("expected message list in redis")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Backend = "postgres"

	store, err := Open(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if store != nil {
		t.Error("expected nil store on error")
	}
}

func seededStore(t *testing.T) ConversationStore {
	t.Helper()
	store, err := Open(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	err = store.Append(context.Background(), "first",
		models.NewMessage(models.RoleHuman, "What's our sales trend?"),
		models.NewMessage(models.RoleAI, "Revenue rose 12% in Q3."))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return store
}

func TestExportThread_Formats(t *testing.T) {
	store := seededStore(t)

	data, err := ExportThread(context.Background(), store, "first")
	if err != nil {
		t.Fatalf("ExportThread() error = %v", err)
	}
	if len(data.Messages) != 2 || data.Tool != "cenly" {
		t.Fatalf("unexpected export: %+v", data)
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := data.Write(&buf, ExportJSON); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		var back ExportData
		if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if back.Messages[1].Content != "Revenue rose 12% in Q3." {
			t.Errorf("content = %q", back.Messages[1].Content)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := data.Write(&buf, ExportYAML); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		var back ExportData
		if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("invalid YAML: %v", err)
		}
		if back.ThreadID != "first" || back.Messages[0].Role != "human" {
			t.Errorf("unexpected YAML export: %+v", back)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		if err := data.Write(&buf, "md"); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		out := buf.String()
		if !strings.HasPrefix(out, "# Conversation first") {
			t.Errorf("missing heading: %q", out)
		}
		if !strings.Contains(out, "**You**") || !strings.Contains(out, "**Cenly**") {
			t.Errorf("missing speakers: %q", out)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := data.Write(&bytes.Buffer{}, "csv"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

type syncingStore struct {
	ConversationStore
	syncs int
	err   error
}

func (s *syncingStore) Sync() error {
	s.syncs++
	return s.err
}

func TestSync(t *testing.T) {
	store, err := Open(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := Sync(store); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Sync(sqlite) error = %v, want ErrInvalidInput", err)
	}

	s := &syncingStore{ConversationStore: store}
	if err := Sync(s); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if s.syncs != 1 {
		t.Errorf("syncs = %d, want 1", s.syncs)
	}

	boom := errors.New("charm cloud unreachable")
	s.err = boom
	if err := Sync(s); !errors.Is(err, boom) {
		t.Errorf("Sync() error = %v, want wrapped %v", err, boom)
	}
}

func TestExportThread_Unknown(t *testing.T) {
	store := seededStore(t)

	data, err := ExportThread(context.Background(), store, "missing")
	if err != nil {
		t.Fatalf("ExportThread() error = %v", err)
	}
	if len(data.Messages) != 0 {
		t.Errorf("expected empty export, got %d messages", len(data.Messages))
	}
}
