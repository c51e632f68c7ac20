// ABOUTME: Interactive terminal chat command
// ABOUTME: Runs the bubbletea UI against the assistant until the user quits
package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/tui"
)

var chatSession string

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with Cenly in the terminal",
		Long: `Open an interactive chat in the terminal.

Earlier messages of the session are shown on start. Type /new to start a
fresh session, esc or ctrl+c to quit.`,
		Example: `  cenly chat
  cenly chat --session q3-review`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().StringVarP(&chatSession, "session", "s", DefaultSession, "Conversation session ID (empty starts a new one)")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(ctx, a.Assistant, chatSession, Hint)
}
