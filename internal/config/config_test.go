// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env var expansion, defaults, duration parsing and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:9090"
database:
  path: "/tmp/jarvis.db"
backend:
  api_key: "test-key"
  model: "gemini-1.5-pro"
  system_prompt: "You are a test assistant."
  timeout: "45s"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/jarvis.db", cfg.Database.Path)
	assert.Equal(t, "test-key", cfg.Backend.APIKey)
	assert.Equal(t, "gemini-1.5-pro", cfg.Backend.Model)
	assert.Equal(t, "You are a test assistant.", cfg.Backend.SystemPrompt)
	assert.Equal(t, 45*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/jarvis.db"
backend:
  api_key: "test-key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "gemini-1.5-flash-latest", cfg.Backend.Model)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_JARVIS_KEY", "secret-from-env")

	path := writeConfig(t, `
database:
  path: "/tmp/jarvis.db"
backend:
  api_key: "${TEST_JARVIS_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Backend.APIKey)
}

func TestLoad_MissingEnvVarFailsValidation(t *testing.T) {
	// An unset variable expands to empty, tripping the api_key check
	path := writeConfig(t, `
database:
  path: "/tmp/jarvis.db"
backend:
  api_key: "${DEFINITELY_NOT_SET_JARVIS}"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
backend:
  api_key: "test-key"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/jarvis.db"
backend:
  api_key: "test-key"
  timeout: "not-a-duration"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/no/such/gateway.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{not yaml")
	_, err := Load(path)
	assert.Error(t, err)
}
