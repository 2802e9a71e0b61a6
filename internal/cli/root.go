package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the fitfly command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fitfly",
		Short: "Guided workout and cooking session timer",
	}

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newPresetsCmd(),
	)

	return rootCmd
}
