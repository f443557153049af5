package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "checkinsched",
		Short:         "Schedules Southwest check-ins and runs them when the 24-hour window opens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newAPIKeyCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newCheckInCmd())
	root.AddCommand(newTasksCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
