package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kona",
	Short: "Bundle JavaScript/TypeScript projects",
	Long: `kona discovers, resolves, transforms, and bundles a JavaScript or
TypeScript project into a small number of self-contained output files.`,
}

// Execute runs the selected sub-command; called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Printf("%v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(devCmd)
}
