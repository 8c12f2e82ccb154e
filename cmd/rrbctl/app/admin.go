package app

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Toggle broker-wide admission control",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "suspend",
		Short: "Stop admitting new session creation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doJSON(cmd.Context(), http.MethodPut, "/admin/suspend", nil, nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Resume admitting new session creation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doJSON(cmd.Context(), http.MethodPut, "/admin/resume", nil, nil)
		},
	})

	return cmd
}
