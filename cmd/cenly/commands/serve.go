// ABOUTME: Serve command runs the web chat UI and JSON API
// ABOUTME: Optionally watches the document directory and rebuilds the index on change
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/server"
)

var (
	serveAddr  string
	serveWatch bool
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web chat UI",
		Long: `Start the web chat UI and JSON API.

The page at / offers starter prompts, session controls and a backend
status panel. Prometheus metrics are served at /metrics.`,
		Example: `  cenly serve
  cenly serve --addr 127.0.0.1:9000 --watch`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config, :8501)")
	cmd.Flags().BoolVar(&serveWatch, "watch", false, "Rebuild the index when documents change")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.Config.Server.Addr
	}

	if serveWatch {
		go func() {
			if err := a.Watch(ctx); err != nil {
				a.Logger.Error("document watcher stopped", "err", err)
			}
		}()
	}

	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Cenly is running at http://%s\n", displayAddr(addr))
	}
	return server.New(a).Start(ctx, addr)
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
