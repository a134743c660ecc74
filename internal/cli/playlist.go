package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/djmd/internal/library"
	"github.com/roach88/djmd/internal/playlists"
)

type createPlaylistResult struct {
	Playlist playlists.Playlist `json:"playlist" yaml:"playlist"`
	Created  bool               `json:"created" yaml:"created"`
}

func (r createPlaylistResult) String() string {
	if !r.Created {
		return fmt.Sprintf("playlist %q already exists", r.Playlist.Name)
	}
	return fmt.Sprintf("created playlist %q (seq %d, usn %d)", r.Playlist.Name, r.Playlist.Seq, r.Playlist.USN)
}

type addToPlaylistResult struct {
	Playlist string `json:"playlist" yaml:"playlist"`
	Added    int    `json:"added" yaml:"added"`
	USN      int64  `json:"usn,omitempty" yaml:"usn,omitempty"`
}

func (r addToPlaylistResult) String() string {
	if r.Added == 0 {
		return fmt.Sprintf("%q already contains every track", r.Playlist)
	}
	return fmt.Sprintf("added %d track(s) to %q (usn %d)", r.Added, r.Playlist, r.USN)
}

type showPlaylistResult struct {
	Playlist playlists.Playlist     `json:"playlist" yaml:"playlist"`
	Members  []playlists.Membership `json:"members" yaml:"members"`
}

func (r showPlaylistResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (id %s, seq %d)", r.Playlist.Name, r.Playlist.ID, r.Playlist.Seq)
	for _, m := range r.Members {
		fmt.Fprintf(&b, "\n%d\t%s", m.TrackNo, m.ContentID)
	}
	return b.String()
}

// NewPlaylistCommand creates the playlist command group.
func NewPlaylistCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Create playlists and add tracks to them",
	}

	cmd.AddCommand(newPlaylistCreateCommand(rootOpts))
	cmd.AddCommand(newPlaylistAddCommand(rootOpts))
	cmd.AddCommand(newPlaylistShowCommand(rootOpts))

	return cmd
}

func newPlaylistCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a top-level playlist",
		Long: `Create a top-level playlist after every existing top-level playlist.

If a playlist with the name already exists nothing is written.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				pl, created, err := lib.CreatePlaylist(ctx, args[0])
				if err != nil {
					return err
				}
				return f.Success(createPlaylistResult{Playlist: pl, Created: created})
			})
		},
	}
}

func newPlaylistAddCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selector{}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Append tracks to a playlist",
		Long: `Append one or more tracks to the end of a playlist.

Tracks already in the playlist keep their position. New tracks are ordered
by rating, highest first, then by date added, newest first.

Example:
  djmd playlist add Oefenen --ref 918205852
  djmd playlist add Warmup --name "so u kno" --name "good lies"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				tracks, err := sel.all(ctx, lib)
				if err != nil {
					return err
				}
				usn, added, err := lib.AddToPlaylist(ctx, args[0], tracks...)
				if err != nil {
					return err
				}
				return f.Success(addToPlaylistResult{Playlist: args[0], Added: added, USN: usn})
			})
		},
	}
	sel.register(cmd)

	return cmd
}

func newPlaylistShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <name>",
		Short:         "List the tracks of a playlist in order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				pl, err := lib.FindPlaylist(ctx, args[0])
				if err != nil {
					return err
				}
				members, err := lib.PlaylistMembers(ctx, args[0])
				if err != nil {
					return err
				}
				return f.Success(showPlaylistResult{Playlist: pl, Members: members})
			})
		},
	}
}
