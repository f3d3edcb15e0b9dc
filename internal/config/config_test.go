package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 1000, cfg.Chunking.MaxChunks)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 1, cfg.Chunking.OverlapLines)
	assert.Equal(t, "bleve", cfg.Search.Backend)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "200ms", cfg.Watch.Debounce)
	assert.Contains(t, cfg.Watch.Exclude, "node_modules")
	assert.Contains(t, cfg.Watch.Exclude, ".git")
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Server.MetricsAddr)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig_DefaultsAreNotShared(t *testing.T) {
	a := NewConfig()
	a.Watch.Exclude[0] = "changed"

	assert.Equal(t, ".git", NewConfig().Watch.Exclude[0])
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: a project file that sets overlap to zero and adds an exclude
	writeFile(t, filepath.Join(dir, ProjectConfigFile), `
chunking:
  max_chunks: 200
  overlap_lines: 0
search:
  backend: sqlite
watch:
  exclude: ["testdata", "node_modules"]
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: set keys win, unset keys keep defaults, excludes accumulate
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chunking.MaxChunks)
	assert.Equal(t, 0, cfg.Chunking.OverlapLines, "explicit zero overrides the default")
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, "sqlite", cfg.Search.Backend)
	assert.Contains(t, cfg.Watch.Exclude, "testdata")
	assert.Contains(t, cfg.Watch.Exclude, ".git")
	assert.Len(t, cfg.Watch.Exclude, len(DefaultExcludePatterns)+1, "duplicates are dropped")
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigFileAlt), "chunking:\n  chunk_size: 42\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Chunking.ChunkSize)
}

func TestLoad_UserThenProject(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeFile(t, filepath.Join(xdg, "codesnip", "config.yaml"), `
chunking:
  chunk_size: 300
server:
  log_level: debug
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigFile), "chunking:\n  chunk_size: 250\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Chunking.ChunkSize, "project overrides user")
	assert.Equal(t, "debug", cfg.Server.LogLevel, "user overrides defaults")
	assert.Equal(t, filepath.Join(xdg, "codesnip", "config.yaml"), GetUserConfigPath())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigFile), "chunking:\n  max_chunks: 200\n")
	t.Setenv("CODESNIP_MAX_CHUNKS", "50")
	t.Setenv("CODESNIP_SEARCH_BACKEND", "sqlite")
	t.Setenv("CODESNIP_METRICS_ADDR", "127.0.0.1:9464")
	t.Setenv("CODESNIP_EXCLUDE", "fixtures, generated ,")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Chunking.MaxChunks)
	assert.Equal(t, "sqlite", cfg.Search.Backend)
	assert.Equal(t, "127.0.0.1:9464", cfg.Server.MetricsAddr)
	assert.Contains(t, cfg.Watch.Exclude, "fixtures")
	assert.Contains(t, cfg.Watch.Exclude, "generated")
}

func TestLoad_EnvMalformedInteger(t *testing.T) {
	isolate(t)
	t.Setenv("CODESNIP_CHUNK_SIZE", "big")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Equal(t, cserrors.ErrCodeConfigInvalid, cserrors.GetCode(err))
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, EnvFile), "CODESNIP_LOG_LEVEL=warn\nCODESNIP_CHUNK_SIZE=64\n")
	t.Setenv("CODESNIP_CHUNK_SIZE", "128")
	t.Cleanup(func() { _ = os.Unsetenv("CODESNIP_LOG_LEVEL") })

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, 128, cfg.Chunking.ChunkSize, ".env never overrides the environment")
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigFile), "chunking: [unclosed\n")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Equal(t, cserrors.ErrCodeConfigInvalid, cserrors.GetCode(err))
	assert.True(t, cserrors.IsFatal(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero overlap", func(c *Config) { c.Chunking.OverlapLines = 0 }, true},
		{"zero max chunks", func(c *Config) { c.Chunking.MaxChunks = 0 }, false},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }, false},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapLines = -1 }, false},
		{"unknown backend", func(c *Config) { c.Search.Backend = "usearch" }, false},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }, false},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, false},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = "-1s" }, false},
		{"zero max file size", func(c *Config) { c.Watch.MaxFileSize = 0 }, false},
		{"sse transport", func(c *Config) { c.Server.Transport = "sse" }, false},
		{"upper case level", func(c *Config) { c.Server.LogLevel = "DEBUG" }, true},
		{"unknown level", func(c *Config) { c.Server.LogLevel = "trace" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()

			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, cserrors.ErrCodeConfigInvalid, cserrors.GetCode(err))
			}
		})
	}
}

func TestDebounceDuration(t *testing.T) {
	cfg := NewConfig()
	cfg.Watch.Debounce = "1.5s"

	d, err := cfg.DebounceDuration()

	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Chunking.MaxChunks = 77
	cfg.Server.MetricsAddr = ":9464"

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigFile)))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_EmptyExtensionsMeansUnset(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigFile), "watch:\n  extensions: []\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Nil(t, cfg.Watch.Extensions)
	assert.Equal(t, NewConfig().Watch, cfg.Watch)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	other := t.TempDir()
	writeFile(t, filepath.Join(other, ProjectConfigFile), "version: 1\n")
	got, err = FindProjectRoot(other)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}
