package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgo/craftlink/internal/app"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one expiry reconciler pass",
		Long: `Reveal pending engagements whose visibility window ran out without a
client confirmation. Safe to run next to the server: records are flipped
with a conditional update.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(a *app.App) error {
				result, err := a.ReconcileJob.RunOnce(cmd.Context())
				if err != nil {
					return fmt.Errorf("reconcile: %w", err)
				}
				if rootOpts.Format != "text" {
					return writeStructured(cmd.OutOrStdout(), rootOpts.Format, result)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d flipped=%d skipped=%d failed=%d\n",
					result.Scanned, result.Flipped, result.Skipped, result.Failed)
				return err
			})
		},
	}
}
