package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/askiada/go-fsexport/internal/export"
)

func newStepsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the steps run for every session with the configured tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			tools := cfg.ToolSet()
			wrt := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(wrt, "STEP\tDESTINATION\tCOMMAND")
			for _, step := range export.Catalog() {
				src := "<mri>/" + step.Source
				if step.Origin == export.FromOutput {
					src = "<session>/" + step.Source
				}
				cmdLine := step.Command(tools, src, "<session>/"+step.Destination).String()
				fmt.Fprintf(wrt, "%s\t%s\t%s\n", step.Name, step.Destination, cmdLine)
			}

			return wrt.Flush()
		},
	}
}
