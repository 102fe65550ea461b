package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/showbox88/GTPinput/internal/log"
)

func newDaemonCmd(app *App) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run recurring passes on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := app.Scheduler()
			if err != nil {
				return err
			}

			ctx, cancel := GracefulShutdown(cmd.Context(), app.Logger, 30*time.Second, nil)
			defer cancel()

			if runNow {
				app.Logger.InfoContext(ctx, "Running initial recurring pass")
				if _, err := sched.RunAll(ctx, time.Now().In(app.Location)); err != nil {
					log.NewStructuredLogger(app.Logger).LogError(ctx, "Initial recurring pass failed", err,
						log.ComponentScheduler, log.OpStartup, nil)
				}
			}
			if ctx.Err() != nil {
				app.Logger.Info("Recurring worker stopped before scheduling")
				return nil
			}

			sched.Start(ctx)
			app.Logger.InfoContext(ctx, "Recurring worker running",
				"next_run", sched.Next().Format(time.RFC3339),
				"backend", app.Config.DataBackend)

			<-ctx.Done()
			sched.Stop()
			app.Logger.Info("Recurring worker stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", true, "Run one pass at startup before waiting for cron")

	return cmd
}
