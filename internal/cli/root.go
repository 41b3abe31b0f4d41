// Package cli wires configuration, collaborators and transports behind the
// saleswire subcommands.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "saleswire",
	Short: "Conversational front-end for the sales warehouse",
	Long: `saleswire answers sales questions over a fixed catalog of vetted SQL
templates: ask in plain language, the dialogue engine picks a template,
collects missing parameters across turns and narrates the result.

  chat    - talk to the assistant in your terminal
  serve   - run the Bot Framework webhook server
  catalog - print and validate the query catalog`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(catalogCmd)
}
