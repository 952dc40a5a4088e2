package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/rxrag/internal/extract"
	"github.com/raphaelgruber/rxrag/internal/models"
	"github.com/spf13/cobra"
)

func newRecordsCmd(e *env) *cobra.Command {
	var patient string

	cmd := &cobra.Command{
		Use:   "records [category...]",
		Short: "Print clinical summaries from a patient record",
		Long: fmt.Sprintf(`Print the text summaries the pharmacist sees for a patient. With no
categories, prints a dated summary of every resource in the record.

Categories: %s

Examples:
  rxrag records allergies
  rxrag records currentMedications observations --patient john`,
			strings.Join(models.CategoryNames(), ", ")),
		ValidArgs: models.CategoryNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := newPrinter(cmd.OutOrStdout())

			a, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			if patient == "" {
				patient = e.cfg.DefaultPatientID
			}

			bundle, err := a.Records().LoadBundle(ctx, patient)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				p.section("Record of "+patient, extract.SummarizeBundle(bundle))
				return nil
			}

			for i, raw := range args {
				c, ok := models.ParseCategory(raw)
				if !ok {
					return fmt.Errorf("unknown category %q (valid: %s)", raw, strings.Join(models.CategoryNames(), ", "))
				}
				text, err := extract.Summarize(bundle, c)
				if err != nil {
					return err
				}
				if i > 0 {
					p.line("")
				}
				p.section(string(c), text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&patient, "patient", "p", "", "patient id (default $DEFAULT_PATIENT_ID)")
	return cmd
}
