package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/djmd/internal/config"
	"github.com/roach88/djmd/internal/library"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	Database   string
	ConfigFile string

	// LibraryOptions are appended to the options every command opens the
	// library with (for testing).
	LibraryOptions []library.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the djmd CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "djmd",
		Short: "djmd - DJ library metadata tool",
		Long: `Tag tracks and build playlists directly in an encrypted DJ library file.

Every change that the host application synchronizes is stamped with a fresh
value from the library's change counter, so edits made here show up as
regular local changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return usageErrorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the library database")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (TOML)")

	// Add subcommands
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewTagsCommand(opts))
	cmd.AddCommand(NewTagCommand(opts))
	cmd.AddCommand(NewUntagCommand(opts))
	cmd.AddCommand(NewClearTagsCommand(opts))
	cmd.AddCommand(NewRateCommand(opts))
	cmd.AddCommand(NewPlaylistCommand(opts))
	cmd.AddCommand(NewCheckpointCommand(opts))
	cmd.AddCommand(NewUSNCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes text logs to w; Debug records only under --verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// openLibrary resolves configuration and opens the library it names.
func (o *RootOptions) openLibrary(ctx context.Context, cmd *cobra.Command) (*library.Library, error) {
	cfg, err := config.Load(o.ConfigFile, map[string]any{
		config.KeyDatabase: o.Database,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := o.logger(cmd.ErrOrStderr())
	log.Debug("opening library", "path", cfg.Database, "max_conns", cfg.MaxConns, "busy_timeout", cfg.BusyTimeout)

	libOpts := []library.Option{
		library.WithLogger(log),
		library.WithStoreOptions(cfg.StoreOptions()),
		library.WithIDAttempts(cfg.IDAttempts),
	}
	libOpts = append(libOpts, o.LibraryOptions...)

	lib, err := library.Open(ctx, cfg.Database, cfg.Passphrase, libOpts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database, err)
	}
	return lib, nil
}

// withLibrary opens the library, runs fn, and closes the library.
// Errors from any step are reported through the formatter.
func (o *RootOptions) withLibrary(cmd *cobra.Command, fn func(ctx context.Context, lib *library.Library, f *OutputFormatter) error) error {
	f := o.formatter(cmd)
	ctx := commandContext(cmd)

	lib, err := o.openLibrary(ctx, cmd)
	if err != nil {
		return fail(f, err)
	}
	defer func() {
		if closeErr := lib.Close(); closeErr != nil {
			f.VerboseLog("error closing library: %v", closeErr)
		}
	}()

	if err := fn(ctx, lib, f); err != nil {
		return fail(f, err)
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
