package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stawikopa-del/fitfly-sub001/internal/presets"
)

func newPresetsCmd() *cobra.Command {
	var presetsFile string

	cmd := &cobra.Command{
		Use:     "presets",
		Aliases: []string{"ls"},
		Short:   "List available presets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := presets.Load(presetsFile)
			if err != nil {
				return fmt.Errorf("load presets: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tSTEPS\tLENGTH\tTITLE")
			for _, p := range catalog.List() {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.Kind, len(p.Steps), formatSeconds(p.TotalSeconds()), p.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&presetsFile, "presets", "p", "", "YAML file with extra presets")
	return cmd
}
