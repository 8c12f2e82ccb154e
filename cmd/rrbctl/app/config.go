package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stacklok/rrbroker/pkg/resourceconfig"
)

var configFormat string

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage resource configs",
	}
	cmd.PersistentFlags().StringVar(&configFormat, "format", FormatText, "output format (json or text)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every resource config",
		RunE:  configListCmdFunc,
	}
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a resource config",
		Args:  cobra.ExactArgs(1),
		RunE:  configDeleteCmdFunc,
	}

	cmd.AddCommand(listCmd, deleteCmd)
	return cmd
}

func configListCmdFunc(cmd *cobra.Command, _ []string) error {
	var configs []*resourceconfig.ResourceConfig
	if err := doJSON(cmd.Context(), http.MethodGet, "/config/", nil, &configs); err != nil {
		return err
	}

	if configFormat == FormatJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(configs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMMAND LINE\tQUEUE\tNODES\tCPUS\tGPUS\tWAIT_UNTIL_RUNNING")
	for _, c := range configs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%v\n",
			c.ID, c.CommandLine, c.Queue, c.NbNodes, c.NbCPUs, c.NbGPUs, c.WaitUntilRunning)
	}
	return w.Flush()
}

func configDeleteCmdFunc(cmd *cobra.Command, args []string) error {
	return doJSON(cmd.Context(), http.MethodDelete, "/config/"+args[0]+"/", nil, nil)
}
