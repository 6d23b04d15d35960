package main

import (
	"fmt"

	"github.com/RichardoC/talkback/internal/models"
	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available models and speech languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, m := range models.Catalog {
				marker := " "
				if m.ID == models.DefaultModel {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-22s %-10s %s\n", marker, m.ID, m.Provider.DisplayName(), m.Description)
			}
			fmt.Fprintln(out)
			for _, l := range models.Languages {
				fmt.Fprintf(out, "  %-6s %s\n", l.Tag, l.Name)
			}
			return nil
		},
	}
}
