package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultPath = "config.json"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Database    DatabaseConfig            `json:"database"`
	Redis       RedisConfig               `json:"redis"`
	Abstract    AbstractConfig            `json:"abstract"`
	Providers   map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress        string `json:"server_address"`
	StaticDir            string `json:"static_dir"`
	UploadDir            string `json:"upload_dir"`
	MaxUploadMB          int64  `json:"max_upload_mb"`
	MaxConcurrent        int    `json:"max_concurrent"`
	StaleUploadMinutes   int    `json:"stale_upload_minutes"`
	CleanIntervalMinutes int    `json:"clean_interval_minutes"`
	RateLimit            int    `json:"rate_limit"`
	RateWindowSeconds    int    `json:"rate_window_seconds"`
	LogLevel             string `json:"log_level"`
}

// DatabaseConfig selects the audit log backend. An empty Driver disables it.
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AbstractConfig enables the optional model-written abstract. Provider names
// an entry in Providers; empty disables it.
type AbstractConfig struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxInputChars  int    `json:"max_input_chars"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:        ":3000",
			StaticDir:            "public",
			UploadDir:            "uploads",
			MaxUploadMB:          30,
			MaxConcurrent:        8,
			StaleUploadMinutes:   60,
			CleanIntervalMinutes: 10,
			RateLimit:            30,
			RateWindowSeconds:    60,
			LogLevel:             "info",
		},
		Abstract: AbstractConfig{
			TimeoutSeconds: 30,
			MaxInputChars:  12000,
		},
	}
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file yields Default(); a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := Default()
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.BasicConfig.ServerAddress = ":" + strings.TrimPrefix(port, ":")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(absPath))
	return cfg, nil
}

func (c *Config) validate() error {
	b := c.BasicConfig
	if b.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	if b.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if b.UploadDir == "" {
		return fmt.Errorf("upload_dir must be configured")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if p := c.Abstract.Provider; p != "" {
		if _, ok := c.Providers[p]; !ok {
			return fmt.Errorf("abstract provider %q has no providers entry", p)
		}
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.BasicConfig.UploadDir = resolve(c.BasicConfig.UploadDir)
	c.BasicConfig.StaticDir = resolve(c.BasicConfig.StaticDir)
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3":
		if c.Database.DSN != ":memory:" && !strings.HasPrefix(c.Database.DSN, "file:") {
			c.Database.DSN = resolve(c.Database.DSN)
		}
	}
}

// MaxUploadBytes is the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.BasicConfig.MaxUploadMB << 20
}

func (c *Config) StaleUploadAge() time.Duration {
	return time.Duration(c.BasicConfig.StaleUploadMinutes) * time.Minute
}

func (c *Config) CleanInterval() time.Duration {
	return time.Duration(c.BasicConfig.CleanIntervalMinutes) * time.Minute
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.BasicConfig.RateWindowSeconds) * time.Second
}
