package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
Verifiers = ["http://localhost:3000"]

[PostgreSQL]
UserWrite = "rollup"
PasswordWrite = "secret"
NameWrite = "rollup"

[Queue]
ExpirationWindow = 100
`

func writeTestConfig(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	require.NoError(t, err)

	// defaults survive where the file is silent
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5432, cfg.PostgreSQL.PortWrite)
	assert.Equal(t, "localhost:8086", cfg.API.Address)
	// file values override defaults
	assert.Equal(t, int64(100), cfg.Queue.ExpirationWindow)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Verifiers)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GROLLUP_LOG_LEVEL", "debug")
	t.Setenv("GROLLUP_QUEUE_EXPIRATIONWINDOW", "250")

	cfg, err := Load(writeTestConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(250), cfg.Queue.ExpirationWindow)
}

func TestLoadValidation(t *testing.T) {
	// missing required PostgreSQL credentials
	_, err := Load("")
	assert.Error(t, err)
}
