// ABOUTME: Manager owns the process-wide active Store with lazy load and rebuild
// ABOUTME: A missing index is built synchronously on first use; other load errors propagate
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/harper/cenly/internal/logger"
	"github.com/harper/cenly/internal/models"
)

// BuildFunc produces a fresh store from the source documents
type BuildFunc func(ctx context.Context) (*Store, error)

// Manager serialises loading and rebuilding so concurrent callers never build twice
type Manager struct {
	dir    string
	name   string
	model  string
	build  BuildFunc
	logger *log.Logger

	mu    sync.Mutex
	store *Store
}

// NewManager creates a manager for dir/name whose entries must come from model
func NewManager(dir, name, model string, build BuildFunc, l *log.Logger) *Manager {
	return &Manager{
		dir:    dir,
		name:   name,
		model:  model,
		build:  build,
		logger: logger.OrDiscard(l),
	}
}

// Get returns the active store, loading it or building it when absent
func (m *Manager) Get(ctx context.Context) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		return m.store, nil
	}

	s, err := Load(m.dir, m.name, m.model)
	if errors.Is(err, models.ErrIndexNotFound) {
		m.logger.Warn("no saved index, building one", "name", m.name, "dir", m.dir)
		s, err = m.buildAndLoad(ctx)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Debug("index loaded", "name", m.name, "entries", s.Len(), "dim", s.Dimension())
	m.store = s
	return s, nil
}

// Rebuild builds a fresh index, persists it and makes it active. The replaced
// store is left open because in-flight retrievals may still hold it; its
// in-memory keyword index is reclaimed with it.
func (m *Manager) Rebuild(ctx context.Context) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.buildAndLoad(ctx)
	if err != nil {
		return nil, err
	}
	m.store = s
	return s, nil
}

// Loaded returns the active store without loading, or nil
func (m *Manager) Loaded() *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store
}

// Close releases the active store
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}

func (m *Manager) buildAndLoad(ctx context.Context) (*Store, error) {
	if m.build == nil {
		return nil, fmt.Errorf("%w: no builder configured", models.ErrIndexNotFound)
	}
	built, err := m.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	if err := built.Save(m.dir, m.name); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}
	m.logger.Info("index saved", "name", m.name, "entries", built.Len())
	return Load(m.dir, m.name, m.model)
}
