package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Tabular source
	SourcePath   string
	GroupColumns []string
	ValueColumn  string

	// Document target
	DocumentPath  string
	DocumentTitle string

	// Durable run state
	StatePath string
	LockPath  string

	// Execution budget for one bounded run
	Budget time.Duration

	// Run registry
	RunTTL time.Duration
}

// fileConfig is the JSONC shape of an optional config file. Comments and
// trailing commas are allowed; the file is standardized with hujson before
// decoding.
type fileConfig struct {
	Port          string   `json:"port"`
	APIKey        string   `json:"api_key"`
	SourcePath    string   `json:"source_path"`
	GroupColumns  []string `json:"group_columns"`
	ValueColumn   string   `json:"value_column"`
	DocumentPath  string   `json:"document_path"`
	DocumentTitle string   `json:"document_title"`
	StatePath     string   `json:"state_path"`
	LockPath      string   `json:"lock_path"`
	Budget        string   `json:"budget"`
	RunTTL        string   `json:"run_ttl"`
}

// Load builds the configuration: defaults, then the optional config file at
// configPath, then environment variables (highest precedence).
func Load(configPath string) (Config, error) {
	cfg := Config{
		Port:          "8091",
		DocumentTitle: "Inspection Form",
		Budget:        240 * time.Second,
		RunTTL:        1 * time.Hour,
	}

	if configPath != "" {
		if err := applyFile(&cfg, configPath); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("FORMFORGE_API_KEY", cfg.APIKey)
	cfg.SourcePath = envOr("SOURCE_PATH", cfg.SourcePath)
	if v := os.Getenv("GROUP_COLUMNS"); v != "" {
		cfg.GroupColumns = splitColumns(v)
	}
	cfg.ValueColumn = envOr("VALUE_COLUMN", cfg.ValueColumn)
	cfg.DocumentPath = envOr("DOCUMENT_PATH", cfg.DocumentPath)
	cfg.DocumentTitle = envOr("DOCUMENT_TITLE", cfg.DocumentTitle)
	cfg.StatePath = envOr("STATE_PATH", cfg.StatePath)
	cfg.LockPath = envOr("LOCK_PATH", cfg.LockPath)
	cfg.Budget = envDuration("TIME_BUDGET", cfg.Budget)
	cfg.RunTTL = envDuration("RUN_TTL", cfg.RunTTL)

	// Derived defaults.
	if cfg.StatePath == "" && cfg.DocumentPath != "" {
		cfg.StatePath = cfg.DocumentPath + ".cursors.json"
	}
	if cfg.LockPath == "" && cfg.DocumentPath != "" {
		cfg.LockPath = cfg.DocumentPath + ".lock"
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 240 * time.Second
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(std, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	if fc.SourcePath != "" {
		cfg.SourcePath = fc.SourcePath
	}
	if len(fc.GroupColumns) > 0 {
		cfg.GroupColumns = fc.GroupColumns
	}
	if fc.ValueColumn != "" {
		cfg.ValueColumn = fc.ValueColumn
	}
	if fc.DocumentPath != "" {
		cfg.DocumentPath = fc.DocumentPath
	}
	if fc.DocumentTitle != "" {
		cfg.DocumentTitle = fc.DocumentTitle
	}
	if fc.StatePath != "" {
		cfg.StatePath = fc.StatePath
	}
	if fc.LockPath != "" {
		cfg.LockPath = fc.LockPath
	}
	if fc.Budget != "" {
		d, err := time.ParseDuration(fc.Budget)
		if err != nil {
			return fmt.Errorf("config budget: %w", err)
		}
		cfg.Budget = d
	}
	if fc.RunTTL != "" {
		d, err := time.ParseDuration(fc.RunTTL)
		if err != nil {
			return fmt.Errorf("config run_ttl: %w", err)
		}
		cfg.RunTTL = d
	}
	return nil
}

func (c Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("SOURCE_PATH is required")
	}
	if len(c.GroupColumns) == 0 {
		return fmt.Errorf("GROUP_COLUMNS is required")
	}
	if c.DocumentPath == "" {
		return fmt.Errorf("DOCUMENT_PATH is required")
	}
	return nil
}

func splitColumns(v string) []string {
	parts := strings.Split(v, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
