// ABOUTME: Status command reports backend reachability, index state and session backend
// ABOUTME: Exits non-zero when the model server cannot be reached
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/app"
	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/models"
	"github.com/harper/cenly/internal/storage/charm"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the model server and index",
		Long: `Check that Ollama is reachable and the configured models are pulled,
and summarise the saved index and the session store.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

type statusOutput struct {
	app.Status
	CharmUserID string `json:"charm_user_id,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	out := statusOutput{Status: a.Status(cmd.Context())}
	if a.Config.Session.Backend == config.BackendCharm {
		if id, err := charm.UserID(); err == nil {
			out.CharmUserID = id
		}
	}

	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		printStatus(cmd, out)
	}

	if !out.Backend.Reachable {
		return fmt.Errorf("%w: %s", models.ErrBackendUnavailable, out.Backend.Error)
	}
	return nil
}

func printStatus(cmd *cobra.Command, out statusOutput) {
	st := out.Status
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	backend := "unreachable"
	if st.Backend.Reachable {
		backend = "ok"
	}
	fmt.Fprintf(w, "Ollama:\t%s (%s)\n", backend, st.Backend.URL)
	if st.Backend.Reachable {
		fmt.Fprintf(w, "Chat model:\t%s\n", modelState(st.Backend, st.Backend.ChatModel))
		fmt.Fprintf(w, "Embedding model:\t%s\n", modelState(st.Backend, st.Backend.EmbeddingModel))
	} else {
		fmt.Fprintf(w, "Chat model:\t%s\n", st.Backend.ChatModel)
		fmt.Fprintf(w, "Embedding model:\t%s\n", st.Backend.EmbeddingModel)
	}

	switch {
	case st.Index.Loaded, st.Index.Exists:
		fmt.Fprintf(w, "Index:\t%q, %d chunks, dim %d\n", st.Index.Name, st.Index.Entries, st.Index.Dimension)
	default:
		fmt.Fprintf(w, "Index:\t%q not built (run `cenly ingest`)\n", st.Index.Name)
	}
	fmt.Fprintf(w, "Index path:\t%s\n", st.Index.Path)
	fmt.Fprintf(w, "Search:\t%s\n", st.Index.SearchType)
	fmt.Fprintf(w, "Documents:\t%s\n", st.DocsDir)
	fmt.Fprintf(w, "Sessions:\t%s\n", st.SessionBackend)
	if out.CharmUserID != "" {
		fmt.Fprintf(w, "Charm user:\t%s\n", out.CharmUserID)
	}
	w.Flush()

	if verbose && len(st.Backend.Models) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\nAvailable models: %s\n", strings.Join(st.Backend.Models, ", "))
	}
}

func modelState(b app.BackendStatus, name string) string {
	if b.HasModel(name) {
		return name
	}
	return name + " (not pulled: run `ollama pull " + name + "`)"
}
