package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hexselect %s", Version)
		if Revision != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " (%s", Revision)
			if BuildDate != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ", %s", BuildDate)
			}
			fmt.Fprint(cmd.OutOrStdout(), ")")
		}
		fmt.Fprintln(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
