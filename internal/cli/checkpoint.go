package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/djmd/internal/library"
)

type checkpointResult struct {
	LogFrames          int   `json:"log_frames" yaml:"log_frames"`
	CheckpointedFrames int   `json:"checkpointed_frames" yaml:"checkpointed_frames"`
	CheckpointedBytes  int64 `json:"checkpointed_bytes" yaml:"checkpointed_bytes"`
}

func (r checkpointResult) String() string {
	return fmt.Sprintf("checkpointed %d/%d frames (%s)",
		r.CheckpointedFrames, r.LogFrames, humanize.Bytes(uint64(r.CheckpointedBytes)))
}

type usnResult struct {
	USN int64 `json:"usn" yaml:"usn"`
}

func (r usnResult) String() string {
	return strconv.FormatInt(r.USN, 10)
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Flush the write-ahead log into the library file",
		Long: `Flush the write-ahead log into the main library file and truncate it.

Run this before handing the file to a tool that ignores the log. A failed
checkpoint leaves committed changes intact.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				res, err := lib.Checkpoint(ctx)
				if err != nil {
					return err
				}
				return f.Success(checkpointResult{
					LogFrames:          res.LogFrames,
					CheckpointedFrames: res.CheckpointedFrames,
					CheckpointedBytes:  res.CheckpointedBytes(),
				})
			})
		},
	}
}

// NewUSNCommand creates the usn command.
func NewUSNCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "usn",
		Short:         "Print the library's current change sequence number",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withLibrary(cmd, func(ctx context.Context, lib *library.Library, f *OutputFormatter) error {
				usn, err := lib.CurrentUSN(ctx)
				if err != nil {
					return err
				}
				return f.Success(usnResult{USN: usn})
			})
		},
	}
}
