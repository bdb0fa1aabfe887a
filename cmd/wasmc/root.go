package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// getColor returns the requested color, or a disabled one when noColor is
// set — the library otherwise probes os.Stdout itself, which guesses
// wrong often enough that every command here goes through this instead.
func getColor(noColor bool, attributes ...color.Attribute) *color.Color {
	if noColor {
		c := color.New()
		c.DisableColor()
		return c
	}
	c := color.New(attributes...)
	c.EnableColor()
	return c
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wasmc",
		Short:         "Ahead-of-time compiler from an ESTree script to a Wasm binary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("no-color", false, "disable colored output")
	root.AddCommand(newCompileCmd())
	root.AddCommand(newVersionCmd())
	return root
}
