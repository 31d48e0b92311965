package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
format_version = "0.1.2"
server_hostname = "localhost"
server_port = "8194"
request_timeout = "20s"

[db]
host = "localhost"
port = 5432
dbname = "tablesrv"
user = "tablesrv"
password = "from-file"
statement_timeout = "3s"

[auth]
signing_key = "0123456789abcdef0123456789abcdef"

[raw_query]
enabled = true
trusted_projects = ["0196a3a0-0000-7000-8000-000000000001"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tablesrv.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	defer SetConfig(nil)
	t.Setenv(EnvDBPassword, "")

	require.NoError(t, LoadConfig(writeConfig(t, sampleConfig)))
	c := Config()
	require.NotNil(t, c)
	assert.Equal(t, "from-file", c.DB.Password)
	assert.Equal(t, "disable", c.DB.SSLMode)
	assert.Equal(t, 50, c.DB.MaxOpenConns)
	assert.Equal(t, 3*time.Second, c.DB.GetStatementTimeout())
	assert.Equal(t, 30*time.Minute, c.DB.GetConnMaxLifetime())
	assert.Equal(t, 20*time.Second, c.GetRequestTimeout())
	assert.Equal(t, 100, c.Records.DefaultPageSize)
	assert.Equal(t, 1000, c.Records.MaxPageSize)
	assert.Equal(t, 10*time.Second, c.RawQuery.GetTimeout())
	assert.True(t, c.RawQuery.IsTrustedProject("0196A3A0-0000-7000-8000-000000000001"))
	assert.False(t, c.RawQuery.IsTrustedProject("0196a3a0-0000-7000-8000-000000000002"))
	assert.Equal(t, "test-user-token", c.Auth.TestUserToken)
	assert.Contains(t, c.DSN(), "dbname=tablesrv")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	defer SetConfig(nil)
	t.Setenv(EnvDBPassword, "from-env")
	require.NoError(t, LoadConfig(writeConfig(t, sampleConfig)))
	assert.Equal(t, "from-env", Config().DB.Password)
}

func TestLoadConfigDotEnv(t *testing.T) {
	defer SetConfig(nil)
	t.Setenv(EnvAuthSigningKey, "")
	path := writeConfig(t, sampleConfig)
	key := "abcdefghijklmnopqrstuvwxyz0123456789"
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(EnvAuthSigningKey+"="+key+"\n"), 0600))
	// godotenv never overwrites variables that are already set, so clear it first.
	require.NoError(t, os.Unsetenv(EnvAuthSigningKey))
	defer os.Unsetenv(EnvAuthSigningKey)

	require.NoError(t, LoadConfig(path))
	assert.Equal(t, key, Config().Auth.SigningKey)
}

func TestLoadConfigErrors(t *testing.T) {
	defer SetConfig(nil)
	tests := []struct {
		name    string
		content string
	}{
		{"format version", `format_version = "1.0.0"`},
		{"bad format version", `format_version = "one"`},
		{"missing port", `format_version = "0.1.0"`},
		{"missing db", "format_version = \"0.1.0\"\nserver_port = \"1\"\n"},
		{"bad toml", `format_version = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, LoadConfig(writeConfig(t, tt.content)))
		})
	}
	assert.Error(t, LoadConfig(""))
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "missing.conf")))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"250ms", 250 * time.Millisecond, false},
		{"5s", 5 * time.Second, false},
		{"30m", 30 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"1w", 0, true},
		{"s", 0, true},
		{"-1s", 0, true},
		{"xs", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}
