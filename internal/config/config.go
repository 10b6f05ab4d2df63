// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file is
// not an error.
const DefaultPath = "libracat.yaml"

type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Journal   JournalConfig   `yaml:"journal"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // file, memory, badger, sqlite, postgres
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
	// Watch reloads the catalog when the flat file changes on disk.
	Watch    bool   `yaml:"watch"`
	Debounce string `yaml:"debounce"`
}

type JournalConfig struct {
	Backend string `yaml:"backend"` // none, memory, postgres
	DSN     string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr           string  `yaml:"addr"`
	RateLimit      float64 `yaml:"rate_limit"`
	Burst          int     `yaml:"burst"`
	AdminTokenHash string  `yaml:"admin_token_hash"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // production, development
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:  "file",
			Path:     "items.txt",
			Debounce: "200ms",
		},
		Journal: JournalConfig{
			Backend: "memory",
		},
		Server: ServerConfig{
			Addr:      ":8081",
			RateLimit: 20,
			Burst:     40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "production",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "libracat",
			Insecure:    true,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("LIBRACAT_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("LIBRACAT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("LIBRACAT_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("LIBRACAT_JOURNAL_BACKEND"); v != "" {
		c.Journal.Backend = v
	}
	if v := os.Getenv("LIBRACAT_JOURNAL_DSN"); v != "" {
		c.Journal.DSN = v
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		if c.Storage.DSN == "" && c.Storage.Backend == "postgres" {
			c.Storage.DSN = url
		}
		if c.Journal.DSN == "" {
			c.Journal.DSN = url
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if v := os.Getenv("LIBRACAT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LIBRACAT_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LIBRACAT_RATE_LIMIT: %w", err)
		}
		c.Server.RateLimit = limit
	}
	if v := os.Getenv("LIBRACAT_ADMIN_TOKEN_HASH"); v != "" {
		c.Server.AdminTokenHash = v
	}

	if v := os.Getenv("LIBRACAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LIBRACAT_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	return nil
}

var (
	ValidStorageBackends = []string{"file", "memory", "badger", "sqlite", "postgres"}
	ValidJournalBackends = []string{"none", "memory", "postgres"}
)

func (c *Config) Validate() error {
	if !contains(ValidStorageBackends, c.Storage.Backend) {
		return fmt.Errorf("invalid storage backend %q: must be one of %v", c.Storage.Backend, ValidStorageBackends)
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("postgres storage needs storage.dsn or DATABASE_URL")
	}
	if !contains(ValidJournalBackends, c.Journal.Backend) {
		return fmt.Errorf("invalid journal backend %q: must be one of %v", c.Journal.Backend, ValidJournalBackends)
	}
	if c.Journal.Backend == "postgres" && c.Journal.DSN == "" {
		return fmt.Errorf("postgres journal needs journal.dsn or DATABASE_URL")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if _, err := time.ParseDuration(c.Storage.Debounce); c.Storage.Debounce != "" && err != nil {
		return fmt.Errorf("storage.debounce: %w", err)
	}
	return nil
}

// WatchDebounce returns how long the watcher waits for writes to settle.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Storage.Debounce)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
