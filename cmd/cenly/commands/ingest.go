// ABOUTME: CLI command to build, rebuild and watch the document index
// ABOUTME: Reports per-file ingestion failures without aborting the build
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/index"
	"github.com/harper/cenly/internal/ingest"
)

var (
	ingestDir     string
	ingestRebuild bool
	ingestWatch   bool
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the document index",
		Long: `Load the documents in the document directory, split and embed them,
and save the vector index.

An existing index is reused unless --rebuild is given. With --watch the
index is rebuilt whenever a supported file is added, changed or removed.

Examples:
  cenly ingest
  cenly ingest --dir ./reports --rebuild
  cenly ingest --watch`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestDir, "dir", "", "Document directory (default: docs.dir from config)")
	cmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "Rebuild even if a saved index exists")
	cmd.Flags().BoolVar(&ingestWatch, "watch", false, "Keep running and rebuild when documents change")

	return cmd
}

type ingestOutput struct {
	Index     string   `json:"index"`
	Rebuilt   bool     `json:"rebuilt"`
	Entries   int      `json:"entries"`
	Dimension int      `json:"dimension"`
	Files     int      `json:"files,omitempty"`
	Documents int      `json:"documents,omitempty"`
	Failures  []string `json:"failures,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, func(cfg *config.Config) {
		if ingestDir != "" {
			cfg.Docs.Dir = ingestDir
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		store  *index.Store
		report *ingest.Report
	)
	if ingestRebuild {
		store, report, err = a.Rebuild(ctx)
	} else {
		store, err = a.Index.Get(ctx)
		report = a.LastReport()
	}
	if err != nil {
		return err
	}

	out := ingestOutput{
		Index:     a.Config.IndexPath(),
		Rebuilt:   report != nil,
		Entries:   store.Len(),
		Dimension: store.Dimension(),
	}
	if report != nil {
		out.Files = report.Files
		out.Documents = report.Documents
		for _, f := range report.Failures {
			out.Failures = append(out.Failures, f.Error())
		}
	}

	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		printIngest(cmd, out)
	}

	if ingestWatch {
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes (ctrl+c to stop)...\n", a.Config.Docs.Dir)
		}
		return a.Watch(ctx)
	}
	return nil
}

func printIngest(cmd *cobra.Command, out ingestOutput) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Index:\t%s\n", out.Index)
	if out.Rebuilt {
		fmt.Fprintf(w, "Files:\t%d\n", out.Files)
		fmt.Fprintf(w, "Documents:\t%d\n", out.Documents)
	} else {
		fmt.Fprintf(w, "Status:\tloaded existing index (use --rebuild to rebuild)\n")
	}
	fmt.Fprintf(w, "Chunks:\t%d\n", out.Entries)
	if out.Dimension > 0 {
		fmt.Fprintf(w, "Dimension:\t%d\n", out.Dimension)
	}
	w.Flush()

	if len(out.Failures) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d file(s) skipped:\n", len(out.Failures))
		for _, f := range out.Failures {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", f)
		}
	}
}
