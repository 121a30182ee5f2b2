package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
server:
  port: 9090
storage:
  requests_dir: /tmp/requests
  audit_log_path: /tmp/audit_log.csv
rules:
  rules_path: /tmp/rules.json
  schema_path: /tmp/forms_schema.json
openai:
  model: gpt-4o
logger:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/requests", cfg.Storage.RequestsDir)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)

	// defaults fill what the file omits
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "configs/event_codes.csv", cfg.Rules.EventCodesPath)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load(writeConfig(t, testConfig))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
