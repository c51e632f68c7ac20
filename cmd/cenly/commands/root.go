// ABOUTME: Root command, global flags and the shared App bootstrap for every subcommand
// ABOUTME: .env is loaded before configuration so CENLY_* and tracing keys can live there
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/cenly/internal/app"
	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/logger"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string

	// loadedConfig is kept so Hint can name the configured models and server
	loadedConfig *config.Config
)

const banner = `
 ██████╗███████╗███╗   ██╗██╗  ██╗   ██╗
██╔════╝██╔════╝████╗  ██║██║  ╚██╗ ██╔╝
██║     █████╗  ██╔██╗ ██║██║   ╚████╔╝
██║     ██╔══╝  ██║╚██╗██║██║    ╚██╔╝
╚██████╗███████╗██║ ╚████║███████╗██║
 ╚═════╝╚══════╝╚═╝  ╚═══╝╚══════╝╚═╝
`

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cenly",
		Short: "Business assistant that answers from your documents",
		Long: banner + `
Cenly indexes the business documents in a folder (PDF, Excel, CSV, text)
and answers questions about them with a local Ollama model, remembering
each conversation by session ID.

Start with:
  cenly ingest              # build the index from ./mock_data
  cenly ask "What's our sales trend?"
  cenly serve               # web UI on :8501`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return errors.New("--verbose and --quiet are mutually exclusive")
			}
			switch outputFormat {
			case "auto", "table", "json":
			default:
				return fmt.Errorf("invalid --format %q (want auto, table or json)", outputFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging and transcripts)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table or json")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./cenly.yaml or $XDG_CONFIG_HOME/cenly/cenly.yaml)")

	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewEvalCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// Hint returns troubleshooting guidance for err using the loaded configuration
func Hint(err error) string {
	return app.Hint(loadedConfig, err)
}

// loadConfig reads .env, then the config file and CENLY_* environment
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	loadedConfig = cfg
	return cfg, nil
}

func newLogger(cfg *config.Config) *log.Logger {
	return logger.New(logger.Options{Level: cfg.Log.Level, Verbose: verbose, Quiet: quiet})
}

// openApp loads configuration and wires the application. mutate, when set,
// adjusts the configuration from command flags before wiring.
func openApp(ctx context.Context, mutate func(*config.Config)) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return app.New(ctx, cfg, newLogger(cfg))
}
