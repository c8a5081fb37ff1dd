package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config holds everything the fleet daemon loads at startup. Guardrails
// limits are intentionally not part of this file: they come from the
// environment so an operator can tighten them without editing config.
type Config struct {
	Runtime RuntimeConfig `json:"runtime"`
	Logging LoggingConfig `json:"logging"`
	Ledger  LedgerConfig  `json:"ledger"`
	Harness HarnessConfig `json:"harness"`
	State   StateConfig   `json:"state_store"`
	Journal JournalConfig `json:"journal"`
	API     APIConfig     `json:"api"`
	Alerts  AlertsConfig  `json:"alerts"`
}

// RuntimeConfig places runtime directories.
type RuntimeConfig struct {
	DataDir     string `json:"data_dir"`
	KeystoreDir string `json:"keystore_dir"`
}

// LoggingConfig mirrors pkg/logger.Config.
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig controls the policy audit log file.
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// LedgerConfig describes how to reach the ledger network.
type LedgerConfig struct {
	// EndpointsConfig points at a YAML file listing candidate RPC endpoints.
	EndpointsConfig string `json:"endpoints_config"`
	// RPCURL, when set, is probed before any endpoint from the YAML list.
	RPCURL string `json:"rpc_url"`
}

// HarnessConfig drives the multi-agent scheduling harness.
type HarnessConfig struct {
	AgentCount         int    `json:"agent_count"`
	Rounds             int    `json:"rounds"`
	SeedTokensPerAgent uint64 `json:"seed_tokens_per_agent"`
	ThresholdTokens    uint64 `json:"threshold_tokens"`
	SendTokens         uint64 `json:"send_tokens"`
	Decimals           uint8  `json:"decimals"`
	// BootstrapMint creates the mint when run state has none yet. Without it
	// a missing mint is a fatal precondition.
	BootstrapMint bool `json:"bootstrap_mint"`
}

// StateConfig selects the run-state store backend.
type StateConfig struct {
	Driver string      `json:"driver"` // "file" (default) or "redis"
	Path   string      `json:"path"`
	Redis  RedisConfig `json:"redis"`
}

// RedisConfig describes a Redis connection for the run-state store.
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// JournalConfig selects where executed transfers are recorded.
type JournalConfig struct {
	Driver   string         `json:"driver"` // "memory" (default) or "mysql"
	DSN      string         `json:"dsn"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig describes the optional transfer event feed.
type RabbitMQConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
}

// APIConfig controls the read-only status API. The bearer token is taken
// from the AGENTFLEET_API_TOKEN environment variable, never from this file.
type APIConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

// AlertsConfig controls operator notification for alert-worthy rejections.
type AlertsConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// Load parses the JSON config file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults fills sensible values for fields the user left empty.
func (c *Config) applyDefaults(baseDir string) {
	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Runtime.KeystoreDir == "" {
		c.Runtime.KeystoreDir = filepath.Join(baseDir, "keystore")
	} else if !filepath.IsAbs(c.Runtime.KeystoreDir) {
		c.Runtime.KeystoreDir = filepath.Join(baseDir, c.Runtime.KeystoreDir)
	}

	if c.Harness.AgentCount <= 0 {
		c.Harness.AgentCount = 3
	}
	if c.Harness.Rounds <= 0 {
		c.Harness.Rounds = 1
	}
	if c.Harness.SeedTokensPerAgent == 0 {
		c.Harness.SeedTokensPerAgent = 25
	}
	if c.Harness.ThresholdTokens == 0 {
		c.Harness.ThresholdTokens = 20
	}
	if c.Harness.SendTokens == 0 {
		c.Harness.SendTokens = 2
	}
	if c.Harness.Decimals == 0 {
		c.Harness.Decimals = 6
	}

	if c.State.Driver == "" {
		c.State.Driver = "file"
	}
	if c.State.Path == "" {
		c.State.Path = filepath.Join(c.Runtime.KeystoreDir, "state.json")
	} else if !filepath.IsAbs(c.State.Path) {
		c.State.Path = filepath.Join(baseDir, c.State.Path)
	}
	if c.State.Redis.Key == "" {
		c.State.Redis.Key = "agentfleet:state"
	}

	if c.Journal.Driver == "" {
		c.Journal.Driver = "memory"
	}
	if c.Journal.RabbitMQ.Queue == "" {
		c.Journal.RabbitMQ.Queue = "agentfleet:transfers"
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
}
