// Package config loads codesnip configuration from defaults, YAML files,
// a .env file and CODESNIP_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/codesnip/internal/chunk"
	cserrors "github.com/Aman-CERP/codesnip/internal/errors"
	"github.com/Aman-CERP/codesnip/internal/store"
)

// File names looked up in the project directory.
const (
	ProjectConfigFile    = ".codesnip.yaml"
	ProjectConfigFileAlt = ".codesnip.yml"
	EnvFile              = ".env"
	EnvPrefix            = "CODESNIP_"
)

// Config is the complete codesnip configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// ChunkingConfig sizes chunks and bounds the index.
type ChunkingConfig struct {
	// MaxChunks caps both the chunks of one document and the whole index.
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// OverlapLines is how many lines consecutive chunks share.
	OverlapLines int `yaml:"overlap_lines" json:"overlap_lines"`
}

// ChunkerConfig converts to the chunker's configuration.
func (c ChunkingConfig) ChunkerConfig() chunk.Config {
	return chunk.Config{
		MaxChunks:    c.MaxChunks,
		ChunkSize:    c.ChunkSize,
		OverlapLines: c.OverlapLines,
	}
}

// SearchConfig selects the engine and result defaults.
type SearchConfig struct {
	// Backend is "bleve" (default) or "sqlite".
	Backend string `yaml:"backend" json:"backend"`
	// DefaultLimit is used when a query does not set a limit.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// WatchConfig configures workspace loading and file watching.
type WatchConfig struct {
	// Debounce coalesces rapid file events, e.g. "200ms".
	Debounce string `yaml:"debounce" json:"debounce"`
	// Exclude lists gitignore-style patterns for paths to skip. Project patterns are
	// added to the defaults, not substituted.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// Extensions limits loading to these file extensions. Empty means every
	// extension with a known language.
	Extensions []string `yaml:"extensions,omitempty" json:"extensions"`
	// MaxFileSize skips larger files, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	// MetricsAddr serves Prometheus metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// DefaultExcludePatterns are always excluded from loading and watching.
var DefaultExcludePatterns = []string{
	".git",
	".codesnip",
	"node_modules",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	"*.min.js",
	"*.min.css",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	defaults := chunk.DefaultConfig()
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			MaxChunks:    defaults.MaxChunks,
			ChunkSize:    defaults.ChunkSize,
			OverlapLines: defaults.OverlapLines,
		},
		Search: SearchConfig{
			Backend:      string(store.BackendBleve),
			DefaultLimit: store.DefaultSearchLimit,
		},
		Watch: WatchConfig{
			Debounce:    "200ms",
			Exclude:     slices.Clone(DefaultExcludePatterns),
			MaxFileSize: 1 << 20,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// Load builds the configuration for the project in dir. Later sources win:
//  1. Defaults
//  2. User config ($XDG_CONFIG_HOME/codesnip/config.yaml)
//  3. Project config (.codesnip.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. CODESNIP_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromDir loads .codesnip.yaml, falling back to .codesnip.yml.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{ProjectConfigFile, ProjectConfigFileAlt} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path over the current values. Keys missing from the file
// keep their value; exclude patterns accumulate.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cserrors.New(cserrors.ErrCodeConfigNotFound, "read config file", err).
			WithDetail("path", path)
	}

	exclude := c.Watch.Exclude
	c.Watch.Exclude = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return cserrors.ConfigError("parse config file", err).WithDetail("path", path)
	}
	c.Watch.Exclude = mergeUnique(exclude, c.Watch.Exclude)
	if len(c.Watch.Extensions) == 0 {
		c.Watch.Extensions = nil
	}
	return nil
}

func mergeUnique(base, extra []string) []string {
	out := slices.Clone(base)
	for _, p := range extra {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// loadDotEnv loads dir/.env into the process environment if present.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, EnvFile)
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return cserrors.ConfigError("load .env file", err).WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies CODESNIP_* variables. Malformed numbers are
// configuration errors rather than silently ignored.
func (c *Config) applyEnvOverrides() error {
	ints := []struct {
		name   string
		target *int
	}{
		{"MAX_CHUNKS", &c.Chunking.MaxChunks},
		{"CHUNK_SIZE", &c.Chunking.ChunkSize},
		{"OVERLAP_LINES", &c.Chunking.OverlapLines},
		{"SEARCH_LIMIT", &c.Search.DefaultLimit},
	}
	for _, e := range ints {
		v, ok := lookupEnv(e.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cserrors.ConfigError("invalid integer in "+EnvPrefix+e.name, err)
		}
		*e.target = n
	}

	strs := []struct {
		name   string
		target *string
	}{
		{"SEARCH_BACKEND", &c.Search.Backend},
		{"WATCH_DEBOUNCE", &c.Watch.Debounce},
		{"TRANSPORT", &c.Server.Transport},
		{"LOG_LEVEL", &c.Server.LogLevel},
		{"METRICS_ADDR", &c.Server.MetricsAddr},
	}
	for _, e := range strs {
		if v, ok := lookupEnv(e.name); ok {
			*e.target = v
		}
	}

	if v, ok := lookupEnv("EXCLUDE"); ok {
		c.Watch.Exclude = mergeUnique(c.Watch.Exclude, splitList(v))
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Chunking.ChunkerConfig().Validate(); err != nil {
		return err
	}

	if !slices.Contains(store.ValidBackends(), c.Search.Backend) {
		return cserrors.ConfigError(
			fmt.Sprintf("search.backend must be one of %s, got %q",
				strings.Join(store.ValidBackends(), ", "), c.Search.Backend), nil)
	}
	if c.Search.DefaultLimit <= 0 {
		return cserrors.ConfigError(
			fmt.Sprintf("search.default_limit must be positive, got %d", c.Search.DefaultLimit), nil)
	}

	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if c.Watch.MaxFileSize <= 0 {
		return cserrors.ConfigError(
			fmt.Sprintf("watch.max_file_size must be positive, got %d", c.Watch.MaxFileSize), nil)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return cserrors.ConfigError(
			fmt.Sprintf("server.transport must be 'stdio', got %q", c.Server.Transport), nil)
	}
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Server.LogLevel)) {
		return cserrors.ConfigError(
			fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel), nil)
	}
	return nil
}

// DebounceDuration parses Watch.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, cserrors.ConfigError(fmt.Sprintf("watch.debounce is not a duration: %q", c.Watch.Debounce), err)
	}
	if d < 0 {
		return 0, cserrors.ConfigError(fmt.Sprintf("watch.debounce must not be negative, got %s", d), nil)
	}
	return d, nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cserrors.InternalError("marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cserrors.New(cserrors.ErrCodeFilePermission, "write config file", err).WithDetail("path", path)
	}
	return nil
}

// GetUserConfigPath returns the user configuration file path:
// $XDG_CONFIG_HOME/codesnip/config.yaml, or ~/.config/codesnip/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codesnip", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codesnip", "config.yaml")
	}
	return filepath.Join(home, ".config", "codesnip", "config.yaml")
}

// FindProjectRoot walks up from startDir to the first directory holding .git
// or a project config file. It returns startDir when none is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", cserrors.New(cserrors.ErrCodeInvalidPath, "resolve project directory", err)
	}

	dir := absDir
	for {
		if dirExists(filepath.Join(dir, ".git")) ||
			fileExists(filepath.Join(dir, ProjectConfigFile)) ||
			fileExists(filepath.Join(dir, ProjectConfigFileAlt)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
