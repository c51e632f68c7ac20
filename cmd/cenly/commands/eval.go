// ABOUTME: Eval command scores answers and retrieval against ground-truth cases
// ABOUTME: Prints a summary table and optionally writes JSON results to a file
package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/eval"
)

var (
	evalOutput string
	evalPrefix string
)

// NewEvalCmd creates the eval command
func NewEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <cases.json>",
		Short: "Evaluate answers and retrieval against test cases",
		Long: `Run each case's question through the assistant and score it.

Faithfulness checks that the expected strings appear in the answer and
forbidden ones do not; context recall checks that the expected strings
appear in the retrieved passages. A case passes at 0.9 on both.

Cases file (JSON or YAML):
  [
    {"id": "sales", "question": "What's our sales trend?",
     "expected_in_response": ["12%"], "expected_context": ["Q3 revenue"]}
  ]`,
		Args: cobra.ExactArgs(1),
		RunE: runEval,
	}

	cmd.Flags().StringVarP(&evalOutput, "output", "o", "", "Write JSON results to this file")
	cmd.Flags().StringVar(&evalPrefix, "session-prefix", "eval_", "Prefix for the per-case session IDs")

	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	cases, err := eval.LoadCases(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := eval.NewRunner(a.Assistant, a.Retriever, evalPrefix, a.Logger).Run(cmd.Context(), cases)
	if err != nil {
		return err
	}

	if evalOutput != "" {
		f, err := os.Create(evalOutput)
		if err != nil {
			return fmt.Errorf("creating %s: %w", evalOutput, err)
		}
		if err := summary.WriteJSON(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if jsonOutput() {
		if err := summary.WriteJSON(cmd.OutOrStdout()); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "CASE\tFAITHFULNESS\tRECALL\tOVERALL\tSTATUS\n")
		fmt.Fprintf(w, "----\t------------\t------\t-------\t------\n")
		for _, r := range summary.Results {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%s\n",
				truncate(r.ID, 30), r.FaithfulnessScore, r.ContextRecallScore, r.OverallScore, r.Status)
		}
		w.Flush()
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "\nPassed: %d/%d\n", summary.Passed, summary.Total)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d case(s) failed", summary.Failed, summary.Total)
	}
	return nil
}
