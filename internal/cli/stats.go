package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show runtime statistics of a running server",
		Long: `Show in-memory runtime statistics of a running rxrag server: request counts,
knowledge cache hit rate, and timings for routing, generation, record loads
and catalog queries.

Examples:
  rxrag stats
  rxrag stats --server http://pharmacy.local:8484`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := e.client().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("get server stats: %w", err)
			}
			newPrinter(cmd.OutOrStdout()).stats(stats.Sessions, stats.Metrics)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rxrag %s\n", Version)
		},
	}
}
