package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/djmd/internal/content"
	"github.com/roach88/djmd/internal/library"
)

// findResult is the output of the find command.
type findResult struct {
	Tracks []content.Content `json:"tracks" yaml:"tracks"`
}

func (r findResult) String() string {
	lines := make([]string, len(r.Tracks))
	for i, c := range r.Tracks {
		lines[i] = fmt.Sprintf("%s\t%d\t%s", c.ID, c.Rating, c.FolderPath)
	}
	return strings.Join(lines, "\n")
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selector{}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Resolve tracks by ID, reference, filename or path",
		Long: `Resolve tracks the way every other command does and print them.

Filename and path patterns match case-insensitively anywhere in the value;
when several tracks match, the first one in the library wins.

Example:
  djmd find --ref 918205852
  djmd find --name "glue" --path "/overmono/"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				tracks, err := sel.all(ctx, lib)
				if err != nil {
					return err
				}
				return f.Success(findResult{Tracks: tracks})
			})
		},
	}
	sel.register(cmd)

	return cmd
}
