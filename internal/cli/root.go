package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the top-level "recurring-worker" command and registers
// all subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "recurring-worker",
		Short:         "Recurring obligation scheduler for the ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(app),
		newDaemonCmd(app),
		newRulesCmd(app),
		newEntriesCmd(app),
		newEventsCmd(app),
	)

	return root
}
