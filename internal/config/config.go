// Package config provides YAML-based configuration with environment
// overrides for single-binary deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`
	LLM     LLMConfig     `yaml:"llm"`
	Query   QueryConfig   `yaml:"query"`
	Chat    ChatConfig    `yaml:"chat"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit"`
}

// StorageConfig contains data directory and database settings.
type StorageConfig struct {
	DataDirectory string `yaml:"data_directory"`
	DatabaseFile  string `yaml:"database_file"`
}

// IngestConfig contains parsing and type inference settings.
type IngestConfig struct {
	SampleRows int `yaml:"sample_rows"`
}

// LLMConfig contains settings for the natural-language-to-SQL model.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
}

// QueryConfig contains execution limits.
type QueryConfig struct {
	DefaultLimit   int `yaml:"default_limit"`
	MaxLimit       int `yaml:"max_limit"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ChatConfig contains chat turn retention settings.
type ChatConfig struct {
	TurnTTLMinutes         int `yaml:"turn_ttl_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "256M",
		},
		Storage: StorageConfig{
			DataDirectory: "./data",
			DatabaseFile:  "tables.duckdb",
		},
		Ingest: IngestConfig{
			SampleRows: 10000,
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "qwen2.5-coder:7b",
			TimeoutSeconds: 60,
			RetryBackoffMs: 500,
		},
		Query: QueryConfig{
			DefaultLimit:   500,
			MaxLimit:       5000,
			TimeoutSeconds: 15,
		},
		Chat: ChatConfig{
			TurnTTLMinutes:         30,
			CleanupIntervalMinutes: 5,
		},
	}
}

// LoadConfig loads configuration from a YAML file, creating a default file
// if none exists.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# tablechat backend configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		c.LLM.BaseURL = baseURL
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
}

// GetDataDir returns the absolute data directory path.
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetDatabasePath returns the absolute path of the DuckDB database file.
func (c *AppConfig) GetDatabasePath() string {
	return filepath.Join(c.Storage.DataDirectory, c.Storage.DatabaseFile)
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories.
func (c *AppConfig) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Storage.DataDirectory, err)
	}
	return nil
}
