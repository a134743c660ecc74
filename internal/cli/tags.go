package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/djmd/internal/library"
	"github.com/roach88/djmd/internal/tags"
)

type tagsResult struct {
	ContentID string     `json:"content_id" yaml:"content_id"`
	Tags      []tags.Tag `json:"tags" yaml:"tags"`
}

func (r tagsResult) String() string {
	if len(r.Tags) == 0 {
		return "no tags"
	}
	return strings.Join(tags.Names(r.Tags), "\n")
}

type tagResult struct {
	ContentID string `json:"content_id" yaml:"content_id"`
	Tag       string `json:"tag" yaml:"tag"`
	Inserted  bool   `json:"inserted" yaml:"inserted"`
	USN       int64  `json:"usn,omitempty" yaml:"usn,omitempty"`
}

func (r tagResult) String() string {
	if !r.Inserted {
		return fmt.Sprintf("%s already tagged %q", r.ContentID, r.Tag)
	}
	return fmt.Sprintf("tagged %s %q (usn %d)", r.ContentID, r.Tag, r.USN)
}

type untagResult struct {
	ContentID string `json:"content_id" yaml:"content_id"`
	Tag       string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Removed   int64  `json:"removed" yaml:"removed"`
}

func (r untagResult) String() string {
	if r.Tag == "" {
		return fmt.Sprintf("cleared %d tag(s) from %s", r.Removed, r.ContentID)
	}
	return fmt.Sprintf("untagged %s %q (%d removed)", r.ContentID, r.Tag, r.Removed)
}

// NewTagsCommand creates the tags command.
func NewTagsCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selector{}

	cmd := &cobra.Command{
		Use:           "tags",
		Short:         "List the tags of a track",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				track, err := sel.one(ctx, lib)
				if err != nil {
					return err
				}
				list, err := lib.ListTags(ctx, track)
				if err != nil {
					return err
				}
				return f.Success(tagsResult{ContentID: track.ID, Tags: list})
			})
		},
	}
	sel.register(cmd)

	return cmd
}

// NewTagCommand creates the tag command.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selector{}

	cmd := &cobra.Command{
		Use:   "tag <tag>",
		Short: "Add a tag to a track",
		Long: `Associate a track with an existing tag.

Tagging a track that already carries the tag changes nothing and does not
advance the library's change counter.

Example:
  djmd tag eatmos --ref 918205852`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				track, err := sel.one(ctx, lib)
				if err != nil {
					return err
				}
				usn, inserted, err := lib.Tag(ctx, track, args[0])
				if err != nil {
					return err
				}
				return f.Success(tagResult{ContentID: track.ID, Tag: args[0], Inserted: inserted, USN: usn})
			})
		},
	}
	sel.register(cmd)

	return cmd
}

// NewUntagCommand creates the untag command.
func NewUntagCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selector{}

	cmd := &cobra.Command{
		Use:           "untag <tag>",
		Short:         "Remove a tag from a track",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				track, err := sel.one(ctx, lib)
				if err != nil {
					return err
				}
				removed, err := lib.Untag(ctx, track, args[0])
				if err != nil {
					return err
				}
				return f.Success(untagResult{ContentID: track.ID, Tag: args[0], Removed: removed})
			})
		},
	}
	sel.register(cmd)

	return cmd
}

// NewClearTagsCommand creates the clear-tags command.
func NewClearTagsCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selector{}

	cmd := &cobra.Command{
		Use:           "clear-tags",
		Short:         "Remove every tag from a track",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				track, err := sel.one(ctx, lib)
				if err != nil {
					return err
				}
				removed, err := lib.ClearTags(ctx, track)
				if err != nil {
					return err
				}
				return f.Success(untagResult{ContentID: track.ID, Removed: removed})
			})
		},
	}
	sel.register(cmd)

	return cmd
}
