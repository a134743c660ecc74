package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/djmd/internal/content"
	"github.com/roach88/djmd/internal/library"
)

type rateResult struct {
	ContentID string `json:"content_id" yaml:"content_id"`
	Rating    int    `json:"rating" yaml:"rating"`
}

func (r rateResult) String() string {
	return fmt.Sprintf("rated %s: %d", r.ContentID, r.Rating)
}

// NewRateCommand creates the rate command.
func NewRateCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selector{}

	cmd := &cobra.Command{
		Use:   "rate <0-5>",
		Short: "Set the star rating of a track",
		Long: `Set the star rating of a track.

Ratings are written directly and are not stamped with a change sequence
number.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[0])
			if err != nil {
				return fail(rootOpts.formatter(cmd), usageErrorf("rating must be a number from 0 to %d, got %q", content.MaxRating, args[0]))
			}
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				track, err := sel.one(ctx, lib)
				if err != nil {
					return err
				}
				if err := lib.Rate(ctx, track, rating); err != nil {
					return err
				}
				return f.Success(rateResult{ContentID: track.ID, Rating: rating})
			})
		},
	}
	sel.register(cmd)

	return cmd
}
