package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stacklok/rrbroker/pkg/session"
)

var sessionFormat string

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect broker sessions",
	}
	cmd.PersistentFlags().StringVar(&sessionFormat, "format", FormatText, "output format (json or text)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every session",
		RunE:  sessionListCmdFunc,
	}
	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE:  sessionGetCmdFunc,
	}

	cmd.AddCommand(listCmd, getCmd)
	return cmd
}

func sessionListCmdFunc(cmd *cobra.Command, _ []string) error {
	var sessions []*session.Session
	if err := doJSON(cmd.Context(), http.MethodGet, "/session/", nil, &sessions); err != nil {
		return err
	}
	return printSessions(sessions)
}

func sessionGetCmdFunc(cmd *cobra.Command, args []string) error {
	var sess session.Session
	if err := doJSON(cmd.Context(), http.MethodGet, "/session/"+args[0]+"/", nil, &sess); err != nil {
		return err
	}
	return printSessions([]*session.Session{&sess})
}

func printSessions(sessions []*session.Session) error {
	if sessionFormat == FormatJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tOWNER\tCONFIG\tSTATUS\tHOST\tPORT\tVALID UNTIL")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.Owner, s.ConfigID, s.Status, s.HTTPHost, s.HTTPPort, s.ValidUntil.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
