package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "assessctl",
	Short: "Operate the negotiation assessment pipeline",
	Long: `assessctl scores transcripts offline, rebuilds learner progress, prints the
achievement catalog and tails a learner's live events.

Commands that touch storage read the same configuration as the server
(negotiator.yaml, .env and the process environment).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(recalcCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(watchCmd)
}
