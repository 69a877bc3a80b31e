package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"liteq/internal/queue"
)

//go:embed sample_config.toml
var sampleConfig string

// Store contains database location and tuning settings.
type Store struct {
	// DatabasePath locates the SQLite file; created on first use.
	DatabasePath string `toml:"database_path"`
	// InMemory opens a private in-memory database instead of a file.
	InMemory bool `toml:"in_memory"`
	// CacheSizeBytes is the SQLite page-cache hint. Zero keeps the default.
	CacheSizeBytes int `toml:"cache_size_bytes"`
}

// Queue contains per-queue defaults applied when flags do not override them.
type Queue struct {
	Namespace string `toml:"namespace"`
	// MaxSize caps ready messages; zero means unbounded.
	MaxSize int `toml:"max_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the liteq CLI.
type Config struct {
	Store   Store   `toml:"store"`
	Queue   Queue   `toml:"queue"`
	Logging Logging `toml:"logging"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Store: Store{
			DatabasePath:   "~/.local/share/liteq/queue.db",
			CacheSizeBytes: queue.DefaultCacheSize,
		},
		Queue: Queue{
			Namespace: queue.DefaultNamespace,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/liteq/config.toml")
}

// Load locates, parses, and validates a configuration file. When path is
// empty the default location is used; a missing file yields defaults. The
// returned config has its database path expanded.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return &cfg, resolvedPath, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("config file %q does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

func (c *Config) normalize() error {
	if !c.Store.InMemory && c.Store.DatabasePath != "" {
		expanded, err := expandPath(c.Store.DatabasePath)
		if err != nil {
			return err
		}
		c.Store.DatabasePath = expanded
	}
	if c.Store.InMemory {
		c.Store.DatabasePath = ""
	}
	c.Queue.Namespace = strings.TrimSpace(c.Queue.Namespace)
	if c.Queue.Namespace == "" {
		c.Queue.Namespace = queue.DefaultNamespace
	}
	return nil
}

// Validate checks the construction rules the queue core will enforce, so
// misconfiguration fails before any store access.
func (c *Config) Validate() error {
	if c.Store.DatabasePath == "" && !c.Store.InMemory {
		return errors.New("store: either database_path or in_memory must be set")
	}
	if c.Store.CacheSizeBytes < 0 {
		return fmt.Errorf("store: cache_size_bytes must be positive, got %d", c.Store.CacheSizeBytes)
	}
	if err := queue.ValidateNamespace(c.Queue.Namespace); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if c.Queue.MaxSize < 0 {
		return fmt.Errorf("queue: max_size must not be negative, got %d", c.Queue.MaxSize)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging: unsupported format %q", c.Logging.Format)
	}
	return nil
}

// StoreOptions converts the configuration into queue construction options.
func (c *Config) StoreOptions() queue.Options {
	return queue.Options{
		Path:      c.Store.DatabasePath,
		InMemory:  c.Store.InMemory,
		CacheSize: c.Store.CacheSizeBytes,
	}
}

// EnsureDirectories creates the database parent directory when file-backed.
func (c *Config) EnsureDirectories() error {
	if c.Store.InMemory || c.Store.DatabasePath == "" {
		return nil
	}
	dir := filepath.Dir(c.Store.DatabasePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure database directory: %w", err)
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file %q already exists", expanded)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
