package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/forgo/craftlink/internal/service"
)

// NewTransitionsCommand creates the transitions command.
func NewTransitionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the engagement lifecycle table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := service.Transitions()
			if rootOpts.Format != "text" {
				return writeStructured(cmd.OutOrStdout(), rootOpts.Format, table)
			}
			return writeTransitionTable(cmd.OutOrStdout(), table)
		},
	}
}

func writeTransitionTable(w io.Writer, table []service.Transition) error {
	const row = "%-10s %-9s %-10s %-12s %s\n"
	if _, err := fmt.Fprintf(w, row, "FROM", "ACTION", "ACTOR", "GUARD", "TO"); err != nil {
		return err
	}
	for _, t := range table {
		_, err := fmt.Fprintf(w, row, t.From, t.Action, t.Actor, orDash(string(t.Guard)), orDash(string(t.To)))
		if err != nil {
			return err
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
