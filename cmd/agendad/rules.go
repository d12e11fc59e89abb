package main

import (
	"fmt"

	"github.com/cyp0633/libagenda/recurrence"
	"github.com/spf13/cobra"
)

const printLayout = "2006-01-02 15:04 Mon"

func newExpandCommand() *cobra.Command {
	var (
		rule string
		from string
		to   string
	)

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the occurrences of a rule between two dates",
		Example: `  agendad expand --rule "DTSTART:20250304T190000;RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=TU" \
    --from 2025-03-01 --to 2025-03-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := recurrence.ParseLocal(from)
			if err != nil {
				return err
			}
			end, err := recurrence.ParseLocalUntil(to)
			if err != nil {
				return err
			}

			engine := recurrence.NewEngine()
			r, err := engine.Decode(rule)
			if err != nil {
				return err
			}

			occ := engine.Expand(r, start, end)
			for _, t := range occ {
				fmt.Fprintln(cmd.OutOrStdout(), t.Format(printLayout))
			}
			if len(occ) == 0 && engine.IsEmpty(r) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: rule produces no occurrences")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rule, "rule", "r", "", "recurrence rule string")
	cmd.Flags().StringVar(&from, "from", "", "first day of the window (2006-01-02)")
	cmd.Flags().StringVar(&to, "to", "", "last day of the window, inclusive (2006-01-02)")
	_ = cmd.MarkFlagRequired("rule")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newDescribeCommand() *cobra.Command {
	var rule string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Summarize a rule in plain words",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := recurrence.NewEngine().Decode(rule)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), recurrence.Describe(r))
			fmt.Fprintln(cmd.OutOrStdout(), recurrence.Encode(r))
			return nil
		},
	}

	cmd.Flags().StringVarP(&rule, "rule", "r", "", "recurrence rule string")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}
