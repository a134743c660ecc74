package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "djmd", cmd.Use)
	assert.Contains(t, cmd.Long, "change counter")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"find"},
		{"tags"},
		{"tag"},
		{"untag"},
		{"clear-tags"},
		{"rate"},
		{"playlist"},
		{"playlist", "create"},
		{"playlist", "add"},
		{"playlist", "show"},
		{"checkpoint"},
		{"usn"},
		{"version"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
}

func TestSelectionFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"find"}, {"tags"}, {"tag"}, {"untag"}, {"clear-tags"}, {"rate"}, {"playlist", "add"}} {
		subCmd, _, err := cmd.Find(path)
		require.NoError(t, err)
		for _, flag := range []string{"id", "ref", "name", "path"} {
			assert.NotNil(t, subCmd.Flags().Lookup(flag), "%v should have --%s", path, flag)
		}
	}
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
}
