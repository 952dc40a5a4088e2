package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// defaultSeedFile is the fixture shipped with the repository.
const defaultSeedFile = "data/drugs/seed.yaml"

func newCatalogCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local drug catalog",
	}
	cmd.AddCommand(newCatalogInitCmd(e), newCatalogSeedCmd(e), newCatalogStatsCmd(e))
	return cmd
}

func newCatalogInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the catalog database and schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the app creates the file and applies the schema.
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).line("Catalog ready at %s", a.DB().Path())
			return nil
		},
	}
}

func newCatalogSeedCmd(e *env) *cobra.Command {
	var wipe bool

	cmd := &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Load medications and knowledge from a YAML fixture",
		Long: `Load medications and their knowledge records from a YAML fixture. Entries are
upserted by slug, so seeding twice is safe.

Examples:
  rxrag catalog seed
  rxrag catalog seed my-formulary.yaml --wipe`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := defaultSeedFile
			if len(args) == 1 {
				path = args[0]
			}

			a, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			if wipe {
				if err := a.WipeData(ctx); err != nil {
					return fmt.Errorf("wipe catalog: %w", err)
				}
			}

			n, err := a.DB().SeedFromFile(ctx, path)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).line("Seeded %d medications from %s", n, path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wipe, "wipe", false, "delete all catalog data before seeding")
	return cmd
}

func newCatalogStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := a.DB().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("catalog stats: %w", err)
			}

			p := newPrinter(cmd.OutOrStdout())
			p.heading("Drug Catalog")
			p.heading("════════════")
			p.line("Path:           %s", stats.Path)
			p.line("Size:           %d bytes", stats.SizeBytes)
			p.line("Medications:    %d", stats.Medications)
			p.line("With knowledge: %d", stats.WithKnowledge)
			p.line("Coded:          %d", stats.Coded)
			return nil
		},
	}
}
