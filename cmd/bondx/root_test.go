package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/bondx/internal/config"
	"github.com/danmuck/bondx/internal/testutil/testlog"
)

func parseRole(t *testing.T, role config.Role, args ...string) (config.ExchangeConfig, error) {
	t.Helper()
	flags := &flagValues{}
	root := buildRootCmd(flags)
	cmd, _, err := root.Find([]string{string(role)})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags(args))
	return resolveConfig(cmd, role, flags)
}

func TestRootHasRoleCommands(t *testing.T) {
	testlog.Start(t)
	root := newRootCmd()
	for _, name := range []string{"local", "client", "server"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestResolveConfigDefaultsPerRole(t *testing.T) {
	testlog.Start(t)
	cfg, err := parseRole(t, config.RoleLocal)
	require.NoError(t, err)
	assert.Equal(t, "ipc", cfg.ResolvedChannel())

	cfg, err = parseRole(t, config.RoleServer)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultRemoteChannel, cfg.ResolvedChannel())
	assert.Equal(t, 1, cfg.ResolvedFragmentLimit())
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("send_count = 3\nidle_strategy = \"sleep\"\n"), 0o600))

	cfg, err := parseRole(t, config.RoleClient,
		"--config", path,
		"--count", "9",
		"--channel", "udp://127.0.0.1:40123",
		"--timeout", "2s",
	)
	require.NoError(t, err)
	assert.Equal(t, config.RoleClient, cfg.Role)
	assert.Equal(t, uint64(9), cfg.SendCount)
	assert.Equal(t, "udp://127.0.0.1:40123", cfg.Channel)
	assert.Equal(t, 2*time.Second, cfg.WaitTimeout)
	assert.Equal(t, "sleep", cfg.IdleStrategy, "unchanged flag keeps the file value")
}

func TestResolveConfigRejectsRemoteIPC(t *testing.T) {
	testlog.Start(t)
	_, err := parseRole(t, config.RoleServer, "--channel", "ipc")
	assert.Error(t, err)
}

func TestNewSinkSelection(t *testing.T) {
	testlog.Start(t)
	assert.Nil(t, newSink(config.OutputNone, zerolog.Nop(), os.Stderr))
	assert.NotNil(t, newSink(config.OutputText, zerolog.Nop(), os.Stderr))
	assert.NotNil(t, newSink(config.OutputLog, zerolog.Nop(), os.Stderr))
}
