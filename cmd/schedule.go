package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/checkin-scheduler/internal/checkin"
	"github.com/example/checkin-scheduler/internal/tasks"
)

func newScheduleCmd() *cobra.Command {
	var (
		req     checkin.ScheduleRequest
		noEmail bool
		noMail  bool
		enqueue bool
	)

	c := &cobra.Command{
		Use:   "schedule",
		Short: "Look up a reservation and print its check-in task",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{noEmail: noEmail})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if noMail {
				send := false
				req.SendConfirmationEmail = &send
			}
			var commit func(context.Context, checkin.Task) error
			if enqueue {
				// queue before the confirmation email goes out
				commit = func(ctx context.Context, task checkin.Task) error {
					q, err := a.openQueue(ctx, true)
					if err != nil {
						return err
					}
					e, _, err := tasks.EnqueueNext(ctx, q, task, "")
					if err != nil {
						return fmt.Errorf("queue task: %w", err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "queued task id=%s run_at=%s\n", e.ID, e.RunAt.Format(time.RFC3339))
					return nil
				}
			}
			task, err := a.scheduler().ScheduleWith(ctx, req, commit)
			if err != nil {
				return err
			}
			a.metrics.RecordScheduled(task.CheckInTimes.Next != nil)
			return printJSON(cmd.OutOrStdout(), task)
		},
	}

	c.Flags().StringVar(&req.FirstName, "first-name", "", "passenger first name")
	c.Flags().StringVar(&req.LastName, "last-name", "", "passenger last name")
	c.Flags().StringVar(&req.ConfirmationNumber, "confirmation", "", "confirmation number")
	c.Flags().StringVar(&req.Email, "email", "", "email for notifications")
	c.Flags().BoolVar(&noMail, "no-confirmation-email", false, "skip the scheduling confirmation email")
	c.Flags().BoolVar(&noEmail, "no-email", false, "do not send any email")
	c.Flags().BoolVar(&enqueue, "enqueue", false, "queue the task for the runner")

	_ = c.MarkFlagRequired("first-name")
	_ = c.MarkFlagRequired("last-name")
	_ = c.MarkFlagRequired("confirmation")
	_ = c.MarkFlagRequired("email")
	return c
}

func newCheckInCmd() *cobra.Command {
	var (
		noEmail bool
		enqueue bool
	)

	c := &cobra.Command{
		Use:   "checkin [task.json|-]",
		Short: "Run one check-in for a task read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readTask(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a, err := newApp(appOptions{noEmail: noEmail})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			result, err := a.executor().CheckInPayload(ctx, payload)
			a.metrics.RecordCheckIn(result.Outcome.String())
			if err != nil {
				return err
			}

			if enqueue && result.Outcome == checkin.OutcomeContinue {
				q, err := a.openQueue(ctx, true)
				if err != nil {
					return err
				}
				if _, _, err := tasks.EnqueueNext(ctx, q, *result.Successor, ""); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"checked_in": result.CheckedIn(),
				"outcome":    result.Outcome,
				"successor":  result.Successor,
			})
		},
	}

	c.Flags().BoolVar(&noEmail, "no-email", false, "do not send any email")
	c.Flags().BoolVar(&enqueue, "enqueue", false, "queue the successor task for the runner")
	return c
}

func readTask(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(args[0])
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
