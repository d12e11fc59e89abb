package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agendad",
		Short: "Agenda server - scheduled announcements and services",
		Long: `agendad serves the agenda of scheduled announcements and services.
It stores items with their recurrence rules, moderates them, publishes
calendar feeds and periodically removes finished one-off items.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./agenda.yaml)")

	cmd.AddCommand(newServeCommand(&configPath))
	cmd.AddCommand(newSweepCommand(&configPath))
	cmd.AddCommand(newExpandCommand())
	cmd.AddCommand(newDescribeCommand())
	return cmd
}
