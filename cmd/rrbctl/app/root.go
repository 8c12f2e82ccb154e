// Package app implements rrbctl, a thin HTTP client CLI over a running
// rrbrokerd's admin and config surfaces.
package app

import (
	"github.com/spf13/cobra"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	serverURL string
)

// NewRootCmd builds the rrbctl root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "rrbctl",
		DisableAutoGenTag: true,
		Short:             "Admin CLI for the rendering resource broker",
		Long: `rrbctl is a thin HTTP client for inspecting and administering a running
rrbrokerd instance: listing sessions and resource configs, and toggling
the session-creation admission gate.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080/rrm/v1", "base URL of the rrbrokerd API")

	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newAdminCmd())

	return rootCmd
}
