package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newEntriesCmd(app *App) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List ledger entries of an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.StoreTimeout)
			defer cancel()
			entries, err := app.Store.ListEntries(ctx, owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No entries for %s.\n", owner)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tITEM\tAMOUNT\tCATEGORY\tSOURCE\tNOTE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Date, e.Item, e.Amount, e.Category, e.Source, e.Note)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
