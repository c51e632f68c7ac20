// ABOUTME: Evaluation cases pair a question with ground truth for the answer and retrieved context
// ABOUTME: Cases load from JSON or YAML files

package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harper/cenly/internal/models"
)

// Case is a single evaluation question
type Case struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Question string `json:"question" yaml:"question"`

	// ExpectedInResponse must all appear in the answer
	ExpectedInResponse []string `json:"expected_in_response,omitempty" yaml:"expected_in_response,omitempty"`
	// ForbiddenInResponse must not appear in the answer
	ForbiddenInResponse []string `json:"forbidden_in_response,omitempty" yaml:"forbidden_in_response,omitempty"`
	// ExpectedContext should appear somewhere in the retrieved passages
	ExpectedContext []string `json:"expected_context,omitempty" yaml:"expected_context,omitempty"`

	// RetrievalOnly skips generation and scores context recall alone
	RetrievalOnly bool `json:"retrieval_only,omitempty" yaml:"retrieval_only,omitempty"`
}

// LoadCases reads a list of cases. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}

	var cases []Case
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cases)
	default:
		err = json.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	seen := make(map[string]bool, len(cases))
	for i, c := range cases {
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("%w: case %d has no question", models.ErrInvalidInput, i+1)
		}
		if c.ID == "" {
			cases[i].ID = fmt.Sprintf("case_%d", i+1)
		}
		if seen[cases[i].ID] {
			return nil, fmt.Errorf("%w: duplicate case id %q", models.ErrInvalidInput, cases[i].ID)
		}
		seen[cases[i].ID] = true
	}
	return cases, nil
}
