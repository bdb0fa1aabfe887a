package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overwritten at release build time via -ldflags.
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the wasmc version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wasmc %s\n", version)
		},
	}
}
