package cli

import (
	"encoding/json"
	"fmt"

	"github.com/raphaelgruber/rxrag/internal/models"
	"github.com/raphaelgruber/rxrag/internal/service"
	"github.com/spf13/cobra"
)

func newAskCmd(e *env) *cobra.Command {
	var (
		session string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the pharmacist a single question",
		Long: `Ask a question and get an answer grounded in the patient's record or the
drug catalog.

The question is routed by the LLM to a patient record lookup or a drug lookup.
Medications named in the question get their catalog knowledge attached once
per session.

Examples:
  rxrag ask "What are my allergies?"
  rxrag ask "What's the dosage of Metformin?" --session visit-1
  rxrag ask "Tell me about Lisinopril" --remote --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prompt := args[0]

			var resp models.AskResponse
			if e.remote {
				r, err := e.client().Ask(ctx, session, prompt)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				resp = *r
			} else {
				a, err := e.openApp(ctx)
				if err != nil {
					return err
				}
				assistant, err := a.Assistant(ctx)
				if err != nil {
					return err
				}
				id := session
				if id == "" {
					id = service.DefaultSession
				}
				result, err := assistant.Infer(ctx, id, prompt)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				resp = models.NewAskResponse(result, id)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			newPrinter(cmd.OutOrStdout()).result(resp.Result())
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "conversation session id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON result")
	return cmd
}
