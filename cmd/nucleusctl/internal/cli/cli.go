// Package cli implements nucleusctl's subcommands. Grounded on
// arctir-proctor's cmd/cmd.go: a root command with no action of its
// own, subcommands attached in one setup function.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nucleusctl",
	Short: "Inspect and self-test the nucleus kernel core.",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs nucleusctl's root command.
func Execute() error {
	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(pstreeCmd)
	rootCmd.AddCommand(socksCmd)
	return rootCmd.Execute()
}
