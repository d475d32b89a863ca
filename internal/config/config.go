// Package config provides configuration loading and structs for the notesearch server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Import  ImportConfig  `yaml:"import"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds the record database path and the root directory of the full-text indexes.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexRoot    string `yaml:"index_root"`
}

// SearchConfig holds index, language, result bound and chunking settings.
type SearchConfig struct {
	IndexName      string `yaml:"index_name"`
	Language       string `yaml:"language"`
	DefaultLimit   int    `yaml:"default_limit"`
	MaxHits        int    `yaml:"max_hits"`
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	QueryCacheSize int    `yaml:"query_cache_size"`
}

// ImportConfig holds settings for importing texts from files. Files in
// Directories are imported when the server starts and whenever they change.
type ImportConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to import directories recursively; defaults to true when unset.
func (i *ImportConfig) RecursiveOrDefault() bool {
	if i.Recursive != nil {
		return *i.Recursive
	}
	return true
}

// WatchConfig controls watching the config file for search language changes.
type WatchConfig struct {
	Config     *bool `yaml:"config"`
	DebounceMS int   `yaml:"debounce_ms"`
}

// ConfigOrDefault returns whether to watch the config file; defaults to true when unset.
func (w *WatchConfig) ConfigOrDefault() bool {
	if w.Config != nil {
		return *w.Config
	}
	return true
}

// Debounce returns the debounce interval for config file events.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
// Returns an error if the file cannot be read or parsed, or holds invalid values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexRoot = expandPath(cfg.Storage.IndexRoot, configDir)
	for i := range cfg.Import.Directories {
		cfg.Import.Directories[i] = expandPath(cfg.Import.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	case c.Search.IndexName == "" || strings.ContainsAny(c.Search.IndexName, `/\`):
		return fmt.Errorf("invalid config: search.index_name %q must be a plain name", c.Search.IndexName)
	case c.Search.MaxHits <= 0:
		return fmt.Errorf("invalid config: search.max_hits must be positive")
	case c.Search.DefaultLimit > c.Search.MaxHits:
		return fmt.Errorf("invalid config: search.default_limit %d exceeds max_hits %d", c.Search.DefaultLimit, c.Search.MaxHits)
	case c.Search.ChunkSize > 0 && c.Search.ChunkOverlap >= c.Search.ChunkSize:
		return fmt.Errorf("invalid config: search.chunk_overlap %d must be smaller than chunk_size %d", c.Search.ChunkOverlap, c.Search.ChunkSize)
	case c.Watch.DebounceMS < 0:
		return fmt.Errorf("invalid config: watch.debounce_ms must not be negative")
	}
	return nil
}

// Save writes the config to path. Used for persisting a language change.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
