package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the CelesTrak element groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSLUG")
		for _, g := range tle.Groups() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", g.ID, g.Name, g.Slug)
		}
		return tw.Flush()
	},
}
