package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 64, cfg.Store.CacheSize)
	assert.Equal(t, "none", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "assistant-memory", cfg.Tracing.ServiceName)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.DataDir = "/tmp/data"
		return cfg
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.DataDir = ""
	assert.ErrorContains(t, cfg.Validate(), "data_dir")

	cfg = valid()
	cfg.Store.CacheSize = 0
	assert.ErrorContains(t, cfg.Validate(), "cache_size")

	cfg = valid()
	cfg.Embedding.Provider = "openai"
	assert.ErrorContains(t, cfg.Validate(), "api_key")

	cfg = valid()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = "sk-test"
	cfg.Embedding.Model = ""
	assert.ErrorContains(t, cfg.Validate(), "model")

	cfg = valid()
	cfg.Embedding.Provider = "cohere"
	assert.ErrorContains(t, cfg.Validate(), "unknown embedding provider")

	cfg = valid()
	cfg.Logging.Level = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "log level")

	cfg = valid()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""
	assert.ErrorContains(t, cfg.Validate(), "metrics.addr")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 64, cfg.Store.CacheSize)
	assert.Equal(t, filepath.Join(cfg.DataDir, "assistant-memory.log"), cfg.Logging.File)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"data_dir": "` + filepath.ToSlash(dir) + `/data",
		"store": {"cache_size": 8},
		"logging": {"level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), filepath.FromSlash(cfg.DataDir))
	assert.Equal(t, 8, cfg.Store.CacheSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, "none", cfg.Embedding.Provider)
}

func TestLoadInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"data_dir": "` + filepath.ToSlash(dir) + `", "store": {"cache_size": -1}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "cache_size")
}

func TestLoadOpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"data_dir": "` + filepath.ToSlash(dir) + `", "embedding": {"provider": "openai"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Embedding.APIKey)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Store.CacheSize = 16

	loader := NewLoader(path)
	require.NoError(t, loader.Save(cfg))
	assert.Equal(t, path, loader.GetConfigPath())

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, 16, loaded.Store.CacheSize)
}
