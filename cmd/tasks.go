package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/checkin-scheduler/internal/config"
	"github.com/example/checkin-scheduler/internal/tasks"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect the check-in queue",
	}
	cmd.AddCommand(newTasksListCmd())
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var (
		limit        int
		confirmation string
		asJSON       bool
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List queued check-in tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{noEmail: true})
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			var entries []tasks.Entry
			if confirmation != "" {
				if a.cfg.QueueBackend != config.BackendPostgres {
					return fmt.Errorf("--confirmation needs the postgres queue backend")
				}
				d, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				entries, err = tasks.NewPostgres(d).ListByConfirmation(ctx, confirmation)
				if err != nil {
					return err
				}
			} else {
				q, err := a.openQueue(ctx, false)
				if err != nil {
					return err
				}
				entries, err = q.List(ctx, limit)
				if err != nil {
					return err
				}
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCONFIRMATION\tRUN AT\tSTATUS\tATTEMPTS\tLAST ERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					e.ID, e.Task.ConfirmationNumber, e.RunAt.Format(time.RFC3339), e.Status, e.Attempts, e.LastError)
			}
			return tw.Flush()
		},
	}
	c.Flags().IntVar(&limit, "limit", 50, "max tasks to show")
	c.Flags().StringVar(&confirmation, "confirmation", "", "only tasks for this confirmation number (postgres)")
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return c
}
