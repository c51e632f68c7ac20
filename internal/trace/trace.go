// ABOUTME: Optional run tracing to a LangSmith-compatible endpoint
// ABOUTME: Runs are posted in the background; failures are logged at debug and dropped
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/logger"
)

const postTimeout = 10 * time.Second

// Run is one traced question/answer exchange
type Run struct {
	ID        string
	Name      string
	ThreadID  string
	Inputs    map[string]any
	Outputs   map[string]any
	Error     error
	StartTime time.Time
	EndTime   time.Time
}

// Tracer records runs
type Tracer interface {
	Record(run Run)
	Close() error
}

// New returns a LangSmith tracer when tracing is active, otherwise a no-op
func New(cfg config.TraceConfig, l *log.Logger) Tracer {
	if !cfg.Active() {
		return Noop{}
	}
	return NewLangSmith(cfg, nil, l)
}

// Noop discards runs
type Noop struct{}

// Record does nothing
func (Noop) Record(Run) {}

// Close does nothing
func (Noop) Close() error { return nil }

// LangSmith posts runs to <endpoint>/runs
type LangSmith struct {
	endpoint string
	apiKey   string
	project  string
	client   *http.Client
	logger   *log.Logger

	wg sync.WaitGroup
}

type runPayload struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	RunType     string         `json:"run_type"`
	SessionName string         `json:"session_name"`
	Inputs      map[string]any `json:"inputs"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewLangSmith creates a tracer; a nil client uses a default with a short timeout
func NewLangSmith(cfg config.TraceConfig, client *http.Client, l *log.Logger) *LangSmith {
	if client == nil {
		client = &http.Client{Timeout: postTimeout}
	}
	project := cfg.Project
	if project == "" {
		project = "cenly"
	}
	return &LangSmith{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		project:  project,
		client:   client,
		logger:   logger.OrDiscard(l),
	}
}

// Record posts the run asynchronously
func (t *LangSmith) Record(run Run) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.post(run); err != nil {
			t.logger.Debug("trace post failed", "run", run.ID, "err", err)
		}
	}()
}

// Close waits for in-flight posts
func (t *LangSmith) Close() error {
	t.wg.Wait()
	return nil
}

func (t *LangSmith) post(run Run) error {
	p := runPayload{
		ID:          run.ID,
		Name:        run.Name,
		RunType:     "chain",
		SessionName: t.project,
		Inputs:      run.Inputs,
		Outputs:     run.Outputs,
		StartTime:   run.StartTime.UTC().Format(time.RFC3339Nano),
		EndTime:     run.EndTime.UTC().Format(time.RFC3339Nano),
	}
	if run.Error != nil {
		p.Error = run.Error.Error()
	}
	if run.ThreadID != "" {
		p.Extra = map[string]any{"metadata": map[string]any{"thread_id": run.ThreadID}}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/runs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("trace endpoint returned %s", resp.Status)
	}
	return nil
}
