// ABOUTME: CLI commands to show, list, clear, export and sync conversation sessions
// ABOUTME: Export writes JSON, YAML or Markdown to stdout or a file
package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/models"
	"github.com/harper/cenly/internal/storage"
)

var (
	exportFormat string
	exportOutput string
)

// NewHistoryCmd creates the history command group
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show or manage conversation sessions",
		Long: `Show the messages of a session (default: first).

Subcommands list every stored session, clear one, or export it.

Examples:
  cenly history
  cenly history q3-review
  cenly history list
  cenly history clear q3-review
  cenly history export q3-review --format md --output q3.md
  cenly history sync`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryShow,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryClearCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistorySyncCmd())

	return cmd
}

func sessionArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return DefaultSession
}

// withStore opens only the configured conversation store
func withStore(cmd *cobra.Command, fn func(storage.ConversationStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := storage.Open(cmd.Context(), cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id := sessionArg(args)
	return withStore(cmd, func(store storage.ConversationStore) error {
		msgs, err := store.History(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput() {
			if msgs == nil {
				msgs = []models.Message{}
			}
			return writeJSON(cmd.OutOrStdout(), msgs)
		}
		if len(msgs) == 0 {
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "No messages in session %s\n", id)
			}
			return nil
		}
		for _, m := range msgs {
			speaker := "You"
			if m.Role == models.RoleAI {
				speaker = "Cenly"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s:\n%s\n\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), speaker, m.Content)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "%d message(s) in session %s\n", len(msgs), id)
		}
		return nil
	})
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store storage.ConversationStore) error {
				threads, err := store.Threads(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput() {
					if threads == nil {
						threads = []models.ThreadInfo{}
					}
					return writeJSON(cmd.OutOrStdout(), threads)
				}
				if len(threads) == 0 {
					if !quiet {
						fmt.Fprintln(cmd.OutOrStdout(), "No sessions found")
					}
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "SESSION\tMESSAGES\tUPDATED\tCREATED\n")
				fmt.Fprintf(w, "-------\t--------\t-------\t-------\n")
				for _, t := range threads {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
						truncate(t.ID, 30), t.MessageCount, formatTime(t.UpdatedAt), formatTime(t.CreatedAt))
				}
				w.Flush()

				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d session(s)\n", len(threads))
				}
				return nil
			})
		},
	}
}

func newHistorySyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Force an immediate sync with Charm cloud",
		Long: `Push and pull sessions with Charm cloud right away.

Only the charm session backend syncs; it otherwise syncs on every write
when charm.auto_sync is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store storage.ConversationStore) error {
				if !quiet {
					fmt.Fprintln(cmd.ErrOrStderr(), "Syncing...")
				}
				if err := storage.Sync(store); err != nil {
					return err
				}
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "Sync complete")
				}
				return nil
			})
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Delete every message of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store storage.ConversationStore) error {
				if err := store.Clear(cmd.Context(), args[0]); err != nil {
					return err
				}
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session as JSON, YAML or Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store storage.ConversationStore) error {
				data, err := storage.ExportThread(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if exportOutput != "" {
					f, err := os.Create(exportOutput)
					if err != nil {
						return fmt.Errorf("creating %s: %w", exportOutput, err)
					}
					defer f.Close()
					w = f
				}
				if err := data.Write(w, exportFormat); err != nil {
					return err
				}
				if exportOutput != "" && !quiet {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d message(s) to %s\n", len(data.Messages), exportOutput)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&exportFormat, "format", storage.ExportJSON, "Export format: json, yaml or md")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
