// Package config provides dynamic configuration management for MinerPulse.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for MinerPulse.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	// HTTPPort (8710): telemetry ingest + query API
	HTTPPort int    `mapstructure:"http_port"`
	DBPath   string `mapstructure:"db_path"`
	DBDriver string `mapstructure:"db_driver"` // only "sqlite" is supported

	// ── Security ──────────────────────────────────────────────────────────────
	// IngestToken: pre-shared key for miner → server ingest requests.
	// Format on wire: "Authorization: Bearer <ingest_token>"
	IngestToken string `mapstructure:"ingest_token"`

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "console" or "json"

	// ── Agent ────────────────────────────────────────────────────────────────
	// AgentMinerURL: base URL of the miner device REST API, e.g. http://192.168.1.50
	AgentMinerURL string `mapstructure:"agent_miner_url"`
	// AgentMinerID: identifier stamped on every reported sample.
	// Empty = fall back to the hostname the device reports.
	AgentMinerID  string `mapstructure:"agent_miner_id"`
	AgentJoinAddr string `mapstructure:"agent_join_addr"`
	AgentInterval int    `mapstructure:"agent_interval_seconds"`
	// AgentOutboundToken for outbound ingest requests (overridden by --token CLI flag)
	AgentOutboundToken string `mapstructure:"agent_outbound_token"`
}

// Load reads config from file (./config.yaml or ~/.minerpulse/config.yaml)
// and falls back to smart defaults. Environment variables with prefix PULSE_
// override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Smart Defaults ---
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("http_port", 8710)
	v.SetDefault("db_path", "minerpulse.db")
	v.SetDefault("db_driver", "sqlite")

	// Security default — MUST be overridden in production via config.yaml or env vars.
	v.SetDefault("ingest_token", "minerpulse-secret-key-123")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("agent_miner_url", "http://192.168.1.50")
	v.SetDefault("agent_miner_id", "")
	v.SetDefault("agent_join_addr", "127.0.0.1:8710")
	v.SetDefault("agent_interval_seconds", 30)
	v.SetDefault("agent_outbound_token", "minerpulse-secret-key-123")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.minerpulse")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
