// Package commands implements the fetchx CLI commands.
package commands

import "github.com/spf13/cobra"

// AddCommands registers every fetchx command on root.
func AddCommands(root *cobra.Command, version, commit, date string) {
	root.AddCommand(NewVersionCommand(version, commit, date))
	root.AddCommand(NewLoginCommand())
	root.AddCommand(NewLogoutCommand())
	root.AddCommand(NewConfigCommand())
	root.AddCommand(NewGetCommand())
	root.AddCommand(NewListCommand())
	root.AddCommand(NewCreateCommand())
	root.AddCommand(NewPatchCommand())
	root.AddCommand(NewPutCommand())
	root.AddCommand(NewDeleteCommand())
}
