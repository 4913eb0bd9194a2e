package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgo/craftlink/internal/app"
)

// NewRecomputeRatingCommand creates the recompute-rating command.
func NewRecomputeRatingCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "recompute-rating [craftsman-id]",
		Short: "Rebuild craftsman ratings from rated engagements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass exactly one of a craftsman id or --all")
			}
			return withApp(cmd.Context(), rootOpts, cmd.ErrOrStderr(), func(a *app.App) error {
				out := cmd.OutOrStdout()
				if all {
					result, err := a.RecomputeJob.RunOnce(cmd.Context())
					if err != nil {
						return fmt.Errorf("recompute: %w", err)
					}
					if rootOpts.Format != "text" {
						return writeStructured(out, rootOpts.Format, result)
					}
					_, err = fmt.Fprintf(out, "recomputed=%d failed=%d\n", result.Recomputed, result.Failed)
					return err
				}

				summary, err := a.Ratings.Recompute(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("recompute %s: %w", args[0], err)
				}
				if rootOpts.Format != "text" {
					return writeStructured(out, rootOpts.Format, summary)
				}
				_, err = fmt.Fprintf(out, "%s rating=%.2f reviews=%d\n", summary.CraftsmanID, summary.Rating, summary.ReviewCount)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "recompute every craftsman with rated engagements")
	return cmd
}
