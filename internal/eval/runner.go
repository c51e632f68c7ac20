// ABOUTME: Runner asks every evaluation case and scores the answers and retrieved passages
// ABOUTME: Each case runs in its own session so cases never see each other's history

package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/cenly/internal/core"
	"github.com/harper/cenly/internal/logger"
	"github.com/harper/cenly/internal/models"
)

// Responder answers a question within a session
type Responder interface {
	Respond(ctx context.Context, prompt, threadID string) (*core.Reply, error)
}

// Searcher retrieves passages without generation
type Searcher interface {
	Retrieve(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Result is the score of one case
type Result struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name,omitempty"`
	Question           string  `json:"question"`
	Answer             string  `json:"answer,omitempty"`
	FaithfulnessScore  float64 `json:"faithfulness"`
	ContextRecallScore float64 `json:"context_recall"`
	OverallScore       float64 `json:"overall"`
	Status             string  `json:"status"`
	FaithfulnessDetail string  `json:"faithfulness_detail"`
	RecallDetail       string  `json:"recall_detail"`
	Passages           int     `json:"passages"`
	Duration           string  `json:"duration"`
	Error              string  `json:"error,omitempty"`
}

// Passed reports whether the case met the threshold
func (r Result) Passed() bool { return r.Status == StatusPass }

const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
)

// Summary aggregates a run
type Summary struct {
	Timestamp time.Time `json:"timestamp"`
	Total     int       `json:"total_cases"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Results   []Result  `json:"results"`
}

// Runner executes evaluation cases
type Runner struct {
	responder Responder
	searcher  Searcher
	session   string
	logger    *log.Logger
}

// NewRunner creates a runner. Sessions are named <prefix><case id>.
func NewRunner(responder Responder, searcher Searcher, prefix string, l *log.Logger) *Runner {
	if prefix == "" {
		prefix = "eval_"
	}
	return &Runner{responder: responder, searcher: searcher, session: prefix, logger: logger.OrDiscard(l)}
}

// Run scores every case. A failing backend call marks the case as ERROR and the
// run continues; only ctx cancellation aborts.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Summary, error) {
	s := &Summary{Timestamp: time.Now().UTC(), Results: make([]Result, 0, len(cases))}
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		res := r.runCase(ctx, c)
		r.logger.Info("case scored", "id", res.ID, "status", res.Status,
			"faithfulness", res.FaithfulnessScore, "recall", res.ContextRecallScore)

		s.Results = append(s.Results, res)
		s.Total++
		if res.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) (res Result) {
	start := time.Now()
	res = Result{ID: c.ID, Name: c.Name, Question: c.Question}
	defer func() { res.Duration = time.Since(start).Round(time.Millisecond).String() }()

	var sources []models.SearchResult
	if c.RetrievalOnly {
		found, err := r.searcher.Retrieve(ctx, c.Question)
		if err != nil {
			res.Status, res.Error = StatusError, err.Error()
			return res
		}
		sources = found
	} else {
		reply, err := r.responder.Respond(ctx, c.Question, r.session+c.ID)
		if err != nil {
			res.Status, res.Error = StatusError, err.Error()
			return res
		}
		res.Answer = reply.Answer
		sources = reply.Sources
	}

	passages := make([]string, 0, len(sources))
	for _, s := range sources {
		passages = append(passages, s.Chunk.Text)
	}
	res.Passages = len(passages)

	if c.RetrievalOnly {
		res.FaithfulnessScore, res.FaithfulnessDetail = 1.0, "not generated"
	} else {
		res.FaithfulnessScore, res.FaithfulnessDetail = Faithfulness(res.Answer, c.ExpectedInResponse, c.ForbiddenInResponse)
	}
	res.ContextRecallScore, res.RecallDetail = ContextRecall(passages, c.ExpectedContext)
	res.OverallScore = (res.FaithfulnessScore + res.ContextRecallScore) / 2

	res.Status = StatusFail
	if res.FaithfulnessScore >= PassThreshold && res.ContextRecallScore >= PassThreshold {
		res.Status = StatusPass
	}
	return res
}

// WriteJSON writes the summary as indented JSON
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}
