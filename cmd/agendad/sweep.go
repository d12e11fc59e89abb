package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete finished one-off items once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.service.Sweep(cmd.Context())
			for _, id := range deleted {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			if err != nil {
				return fmt.Errorf("sweep finished with errors: %w", err)
			}
			return nil
		},
	}
}
