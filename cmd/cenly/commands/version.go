// ABOUTME: Version command reporting the build stamped in by main
// ABOUTME: Plain text by default, a JSON object with --format json
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionInfo = VersionInfo{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
}

// VersionInfo is the build metadata set through ldflags
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"built"`
}

type versionOutput struct {
	VersionInfo
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// SetVersion records build metadata; main calls it before Execute
func SetVersion(version, commit, date string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the Cenly release, commit, build date and Go toolchain.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := versionOutput{
				VersionInfo: versionInfo,
				Go:          runtime.Version(),
				Platform:    runtime.GOOS + "/" + runtime.GOARCH,
			}
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Cenly %s\n", out.Version)
			if quiet {
				return nil
			}
			fmt.Fprintf(w, "Commit:   %s\n", out.Commit)
			fmt.Fprintf(w, "Built:    %s\n", out.Date)
			fmt.Fprintf(w, "Go:       %s (%s)\n", out.Go, out.Platform)
			return nil
		},
	}
}
