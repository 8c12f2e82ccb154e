// Package app wires the rendering-resource broker daemon's cobra command,
// HTTP server, and background sweeper.
package app

import (
	"github.com/spf13/cobra"

	"github.com/stacklok/rrbroker/pkg/logger"
)

var (
	configFile string
	debugMode  bool
)

// NewRootCmd builds the rrbrokerd root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "rrbrokerd",
		DisableAutoGenTag: true,
		Short:             "Rendering resource broker daemon",
		Long: `rrbrokerd manages the lifecycle of remote rendering sessions across
SSH/SLURM clusters, UNICORE grids, and local processes, exposing an HTTP
API for session scheduling, status polling, and opaque command forwarding.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Initialize(debugMode); err != nil {
				return err
			}
			return runServe(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (optional; env vars take precedence under RRB_ prefix)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable verbose development logging")

	return rootCmd
}
