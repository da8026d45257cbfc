package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ordersync", cmd.Use)
	assert.Contains(t, cmd.Long, "local-only mode")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"place", "advance", "cancel", "item", "list", "recover", "watch", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
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

	for _, name := range []string{"config", "db", "redis", "peer"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Empty(t, f.DefValue, name)
	}
}

func TestMutatingCommandsRequireRole(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"advance", "cancel", "item"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			role := sub.Flags().Lookup("role")
			require.NotNil(t, role)
			assert.Equal(t, []string{"true"}, role.Annotations[cobra.BashCompOneRequiredFlag])
		})
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	require.NotNil(t, testCmd.Flags().Lookup("filter"))
	require.NotNil(t, testCmd.Flags().Lookup("golden"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolve_FlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "peer.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
peer: "kitchen"
db_path: "from-file.db"
windows: cancel: "30s"
`), 0644))

	opts := &RootOptions{ConfigPath: cfgPath, DBPath: filepath.Join(dir, "flag.db"), Verbose: true}
	require.NoError(t, opts.resolve(NewRootCommand()))

	assert.Equal(t, "kitchen", opts.Config.Peer)
	assert.Equal(t, filepath.Join(dir, "flag.db"), opts.Config.DBPath)
	assert.Equal(t, 30*time.Second, opts.Config.Lifecycle.CancelWindow)
	assert.True(t, opts.Logger.Enabled(t.Context(), slog.LevelDebug), "verbose enables debug logging")
}

func TestResolve_DefaultPeerName(t *testing.T) {
	opts := &RootOptions{}
	require.NoError(t, opts.resolve(NewRootCommand()))
	assert.Equal(t, "cli", opts.Config.Peer)
	assert.Empty(t, opts.Config.Redis.Addr)
}

func TestResolve_BadConfig(t *testing.T) {
	opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.cue")}
	err := opts.resolve(NewRootCommand())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
