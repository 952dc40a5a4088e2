package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rxrag/internal/client"
	"github.com/spf13/cobra"
)

func newSessionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Show what a running server remembers about a session",
		Long: `Show the medications already covered in a server session and its latest
exchange. Chat sessions assigned by the server are forgotten when the chat
disconnects, so only named sessions can be inspected afterwards.

Examples:
  rxrag session default
  rxrag session visit-42 --server http://pharmacy.local:8484`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := e.client().Session(cmd.Context(), args[0])
			if client.IsNotFound(err) {
				return fmt.Errorf("session %q not found", args[0])
			}
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			p := newPrinter(cmd.OutOrStdout())
			p.heading("Session " + info.SessionID)
			mentioned := "none"
			if len(info.Mentioned) > 0 {
				mentioned = strings.Join(info.Mentioned, ", ")
			}
			p.line("Medications covered: %s", mentioned)
			if info.LastPrompt != "" {
				p.line("Last question: %s", info.LastPrompt)
				p.line("Last answer:   %s", info.LastResponse)
			}
			return nil
		},
	}
}
