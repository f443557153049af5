package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/checkin-scheduler/internal/web"
)

func newServerCmd() *cobra.Command {
	var (
		migrateUp bool
		noEmail   bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API and the check-in runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{noEmail: noEmail})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			q, err := a.openQueue(ctx, migrateUp)
			if err != nil {
				return err
			}

			r := a.runner(q)
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = r.Run(ctx)
			}()

			ws := &web.Server{
				Scheduler:  a.scheduler(),
				Executor:   a.executor(),
				Queue:      q,
				Sealer:     a.sealer(),
				APIKeyHash: a.cfg.APIKeyHash,
				Metrics:    a.metrics,
				Gatherer:   a.registry,
				Logger:     a.log,
			}
			err = web.Start(ctx, a.cfg.ListenAddr, ws.Routes(), a.log)
			cancel()
			<-done
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&noEmail, "no-email", false, "do not send any email")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

func newWorkerCmd() *cobra.Command {
	var (
		migrateUp bool
		noEmail   bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run only the check-in runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{noEmail: noEmail})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			q, err := a.openQueue(ctx, migrateUp)
			if err != nil {
				return err
			}
			if err := a.runner(q).Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "run database migrations on startup")
	cmd.Flags().BoolVar(&noEmail, "no-email", false, "do not send any email")
	return cmd
}
