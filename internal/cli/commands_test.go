package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/tablebase/internal/tablesrv/tblcommon"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"project", "create"},
		{"project", "delete"},
		{"token", "create"},
		{"table", "apply"},
		{"table", "describe"},
		{"table", "list"},
		{"table", "drop"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--config", "does-not-exist.conf"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "tablesrv "+tblcommon.ServerVersion)
}

func TestConfigPath(t *testing.T) {
	configFile = ""
	t.Setenv(EnvConfigFile, "")
	assert.Equal(t, DefaultConfigFile, configPath())

	t.Setenv(EnvConfigFile, "/etc/tablesrv.conf")
	assert.Equal(t, "/etc/tablesrv.conf", configPath())

	configFile = "local.conf"
	t.Cleanup(func() { configFile = "" })
	assert.Equal(t, "local.conf", configPath())
}
