package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/rxrag/internal/drug"
	"github.com/spf13/cobra"
)

func newDrugCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "drug <name>",
		Short: "Look up a medication in the local catalog",
		Long: `Look up a medication by name in the drug catalog and print its knowledge
record. Matching is a case-insensitive substring; the first catalog entry wins.
No LLM is involved.

Examples:
  rxrag drug metformin
  rxrag drug "Ondansetron"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := strings.TrimSpace(args[0])
			p := newPrinter(cmd.OutOrStdout())

			a, err := e.openApp(ctx)
			if err != nil {
				return err
			}

			entry, err := a.Matcher().MatchName(ctx, name)
			if errors.Is(err, drug.ErrNoMatch) {
				p.line("Sorry, I couldn't find info on '%s'.", name)
				return nil
			}
			if err != nil {
				return fmt.Errorf("lookup: %w", err)
			}

			knowledge, err := a.Knowledge().Get(ctx, entry.Slug)
			if err != nil {
				return fmt.Errorf("knowledge: %w", err)
			}

			p.heading(drug.InfoHeading)
			p.line("%s", drug.Block(entry.Name, knowledge))
			p.hint(entryDetails(entry.Slug, entry.Code, entry.Manufacturer, entry.Strength, entry.Form, entry.Route))
			return nil
		},
	}
}

// entryDetails joins the non-empty catalog attributes for display.
func entryDetails(slug string, attrs ...string) string {
	parts := []string{"slug " + slug}
	for _, a := range attrs {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
