package cli

import (
	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"
)

// Version is the djmd release.
var Version = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}

type versionResult struct {
	Version string `json:"version" yaml:"version"`
}

func (r versionResult) String() string {
	return "djmd " + r.Version
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the djmd version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(versionResult{Version: Version.String()})
		},
	}
}
