package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/showbox88/GTPinput/internal/amqp"
)

func newEventsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print ledger entry events from the AMQP queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not configured")
			}
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := GracefulShutdown(cmd.Context(), app.Logger, 5*time.Second, nil)
			defer cancel()

			out := cmd.OutOrStdout()
			err = client.ConsumeEntryCreated(ctx, func(m *amqp.EntryCreatedMessage) error {
				_, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%s\n",
					m.Timestamp.Format(time.RFC3339), m.OwnerID, m.Date, m.Item, m.Amount, m.Source)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
