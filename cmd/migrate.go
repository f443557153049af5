package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/checkin-scheduler/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(appOptions{noEmail: true})
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := context.Background()

			d, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			if err := migrate.Up(ctx, d); err != nil {
				return err
			}
			files, err := migrate.Files()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(files))
			return nil
		},
	}
}
