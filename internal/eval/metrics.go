// ABOUTME: Faithfulness and context recall scoring for evaluation cases
// ABOUTME: Deterministic substring checks against ground truth, case-insensitive

package eval

import (
	"fmt"
	"strings"
)

// PassThreshold is the minimum score on both metrics for a case to pass
const PassThreshold = 0.9

// Faithfulness scores an answer (0.0-1.0): every expected item present and no
// forbidden item present scores 1, one kind of violation 0.5, both 0.
func Faithfulness(answer string, expected, forbidden []string) (float64, string) {
	upper := strings.ToUpper(answer)

	var missing []string
	for _, e := range expected {
		if !strings.Contains(upper, strings.ToUpper(e)) {
			missing = append(missing, e)
		}
	}
	var found []string
	for _, f := range forbidden {
		if strings.Contains(upper, strings.ToUpper(f)) {
			found = append(found, f)
		}
	}

	switch {
	case len(missing) == 0 && len(found) == 0:
		return 1.0, "answer matches ground truth"
	case len(missing) > 0 && len(found) > 0:
		return 0.0, fmt.Sprintf("missing expected items: %v, forbidden items found: %v", missing, found)
	case len(missing) > 0:
		return 0.5, fmt.Sprintf("missing expected items: %v", missing)
	default:
		return 0.5, fmt.Sprintf("forbidden items found: %v", found)
	}
}

// ContextRecall is the share of expected items found in the retrieved passages
func ContextRecall(passages, expected []string) (float64, string) {
	if len(expected) == 0 {
		return 1.0, "no context expected"
	}

	all := strings.ToUpper(strings.Join(passages, " "))
	var missing []string
	for _, e := range expected {
		if !strings.Contains(all, strings.ToUpper(e)) {
			missing = append(missing, e)
		}
	}

	recall := float64(len(expected)-len(missing)) / float64(len(expected))
	if len(missing) == 0 {
		return 1.0, "all expected context retrieved"
	}
	return recall, fmt.Sprintf("recall %.2f, missing items: %v", recall, missing)
}
