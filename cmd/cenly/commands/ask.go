// ABOUTME: CLI command to ask a single question within a session
// ABOUTME: Prints the answer, and the source passages with --verbose
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// DefaultSession is the session used when --session is not given
const DefaultSession = "first"

var askSession string

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your documents",
		Long: `Ask a question and print the answer.

The question is answered from the indexed documents; the index is built
on first use. The exchange is saved to the session so follow-up questions
see the earlier turns.

Examples:
  cenly ask "What's our sales trend?"
  cenly ask --session q3-review "How does that compare to Q2?"
  cenly ask --format json "Show me our key business metrics"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVarP(&askSession, "session", "s", DefaultSession, "Conversation session ID")

	return cmd
}

type askOutput struct {
	SessionID   string         `json:"session_id"`
	Answer      string         `json:"answer"`
	Placeholder bool           `json:"placeholder,omitempty"`
	Sources     []sourceOutput `json:"sources"`
}

type sourceOutput struct {
	Rank   int     `json:"rank"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if strings.TrimSpace(askSession) == "" {
		return fmt.Errorf("--session cannot be empty")
	}

	a, err := openApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.Assistant.Respond(cmd.Context(), question, askSession)
	if err != nil {
		return err
	}

	out := askOutput{SessionID: reply.ThreadID, Answer: reply.Answer, Placeholder: reply.Placeholder}
	for _, r := range reply.Sources {
		out.Sources = append(out.Sources, sourceOutput{Rank: r.Rank, Source: r.Chunk.Label(), Score: r.Score})
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), out)
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply.Answer)
	if verbose && len(out.Sources) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "\nSources:")
		for _, s := range out.Sources {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s (%.3f)\n", s.Rank, s.Source, s.Score)
		}
	}
	return nil
}
