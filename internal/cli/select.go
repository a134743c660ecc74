package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/djmd/internal/content"
	"github.com/roach88/djmd/internal/library"
)

// selector holds the track selection flags shared by per-track commands.
// Each flag may be repeated; most commands accept exactly one track.
type selector struct {
	IDs   []string
	Refs  []string
	Names []string
	Paths []string
}

func (s *selector) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&s.IDs, "id", nil, "track by content ID")
	cmd.Flags().StringArrayVar(&s.Refs, "ref", nil, "track by bracketed catalogue reference in its filename")
	cmd.Flags().StringArrayVar(&s.Names, "name", nil, "track by filename substring (case-insensitive)")
	cmd.Flags().StringArrayVar(&s.Paths, "path", nil, "track by folder path substring (case-insensitive)")
}

func (s *selector) count() int {
	return len(s.IDs) + len(s.Refs) + len(s.Names) + len(s.Paths)
}

// one resolves exactly one selected track.
func (s *selector) one(ctx context.Context, lib *library.Library) (content.Content, error) {
	if s.count() != 1 {
		return content.Content{}, usageErrorf("select exactly one track with --id, --ref, --name or --path")
	}
	tracks, err := s.resolve(ctx, lib)
	if err != nil {
		return content.Content{}, err
	}
	return tracks[0], nil
}

// all resolves every selected track, requiring at least one.
func (s *selector) all(ctx context.Context, lib *library.Library) ([]content.Content, error) {
	if s.count() == 0 {
		return nil, usageErrorf("select at least one track with --id, --ref, --name or --path")
	}
	return s.resolve(ctx, lib)
}

func (s *selector) resolve(ctx context.Context, lib *library.Library) ([]content.Content, error) {
	lookups := []struct {
		patterns []string
		find     func(context.Context, string) (content.Content, error)
	}{
		{s.IDs, lib.Get},
		{s.Refs, lib.FindByRef},
		{s.Names, lib.FindByFilename},
		{s.Paths, lib.FindByPath},
	}

	tracks := make([]content.Content, 0, s.count())
	for _, l := range lookups {
		for _, p := range l.patterns {
			c, err := l.find(ctx, p)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, c)
		}
	}
	return tracks, nil
}
