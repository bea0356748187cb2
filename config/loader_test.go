package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/config"
)

func TestParse_ExpandsEnvVarsAndFillsDefaults(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test-123")

	yaml := `
name: test-deployment
llms:
  default:
    provider: anthropic
    api_key: ${TEST_ANTHROPIC_KEY}
  fallback:
    provider: anthropic
    model: ${UNSET_MODEL:-claude-sonnet-4-20250514}
agents:
  assistant:
    tools: [manage_archival_memory]
`

	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	require.Contains(t, cfg.LLMs, "default")
	assert.Equal(t, "sk-test-123", cfg.LLMs["default"].APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLMs["fallback"].Model)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pattern.db", cfg.Store.DSN)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logger.Level)

	require.Contains(t, cfg.Agents, "assistant")
	assert.Equal(t, "default", cfg.Agents["assistant"].LLM)
}

func TestParse_RejectsUndefinedAgentLLMReference(t *testing.T) {
	yaml := `
agents:
  assistant:
    llm: missing
`
	_, err := config.Parse([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestParse_RejectsUnsupportedStoreDriver(t *testing.T) {
	yaml := `
store:
  driver: oracle
`
	_, err := config.Parse([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestLoad_ReadsFileFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/pattern.yaml"
	require.NoError(t, os.WriteFile(path, []byte("name: on-disk\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "on-disk", cfg.Name)
}
