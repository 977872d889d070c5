package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fexdroid/gamelaunchd/internal/library"
	"github.com/fexdroid/gamelaunchd/internal/pool"
)

// Config is the top-level TOML structure for gamelaunchd.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime" mapstructure:"runtime"`
	Pool    PoolConfig    `toml:"pool" mapstructure:"pool"`
	Bridge  BridgeConfig  `toml:"bridge" mapstructure:"bridge"`
	Library LibraryConfig `toml:"library" mapstructure:"library"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	History []HistorySink `toml:"history_sinks" mapstructure:"history_sinks"`
}

type RuntimeConfig struct {
	RootDir       string   `toml:"root_dir" mapstructure:"root_dir"`
	Binary        string   `toml:"binary" mapstructure:"binary"`
	LogDir        string   `toml:"log_dir" mapstructure:"log_dir"`
	SystemLibDirs []string `toml:"system_lib_dirs" mapstructure:"system_lib_dirs"`
	FexArgs       []string `toml:"fex_args" mapstructure:"fex_args"`
}

type PoolConfig struct {
	Policy        string `toml:"policy" mapstructure:"policy"` // "serial" or "concurrent"
	MaxConcurrent int    `toml:"max_concurrent" mapstructure:"max_concurrent"`
}

type BridgeConfig struct {
	RequestPath  string        `toml:"request_path" mapstructure:"request_path"`
	ResponsePath string        `toml:"response_path" mapstructure:"response_path"`
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
}

type LibraryConfig struct {
	Type  string                 `toml:"type" mapstructure:"type"` // "sqlite" or "static"
	Path  string                 `toml:"path" mapstructure:"path"` // sqlite database file
	Games []library.Installation `toml:"games" mapstructure:"games"`
}

type LogConfig struct {
	Level         string `toml:"level" mapstructure:"level"`
	File          string `toml:"file" mapstructure:"file"` // daemon log; empty disables the file sink
	MaxSizeMB     int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays    int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress      bool   `toml:"compress" mapstructure:"compress"`
	RetentionDays int    `toml:"retention_days" mapstructure:"retention_days"` // per-run game logs
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type HistorySink struct {
	Type  string `toml:"type" mapstructure:"type"` // "postgres" or "clickhouse"
	DSN   string `toml:"dsn" mapstructure:"dsn"`
	Table string `toml:"table" mapstructure:"table"` // clickhouse only
}

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Pool.Policy == "" {
		c.Pool.Policy = string(pool.PolicySerial)
	}
	if c.Pool.MaxConcurrent <= 0 {
		c.Pool.MaxConcurrent = 3
	}
	if c.Bridge.PollInterval <= 0 {
		c.Bridge.PollInterval = time.Second
	}
	if c.Library.Type == "" {
		if c.Library.Path != "" {
			c.Library.Type = "sqlite"
		} else {
			c.Library.Type = "static"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.RetentionDays <= 0 {
		c.Log.RetentionDays = 7
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8749"
	}
}

func (c *Config) validate() error {
	if c.Runtime.RootDir == "" {
		return fmt.Errorf("runtime.root_dir is required")
	}
	switch pool.Policy(c.Pool.Policy) {
	case pool.PolicySerial, pool.PolicyConcurrent:
	default:
		return fmt.Errorf("pool.policy must be %q or %q, got %q",
			pool.PolicySerial, pool.PolicyConcurrent, c.Pool.Policy)
	}
	switch c.Library.Type {
	case "sqlite":
		if c.Library.Path == "" {
			return fmt.Errorf("library.path is required for a sqlite library")
		}
	case "static":
	default:
		return fmt.Errorf("library.type must be \"sqlite\" or \"static\", got %q", c.Library.Type)
	}
	for i, s := range c.History {
		switch s.Type {
		case "postgres", "clickhouse":
			if s.DSN == "" {
				return fmt.Errorf("history_sinks[%d].dsn is required", i)
			}
		default:
			return fmt.Errorf("history_sinks[%d].type must be \"postgres\" or \"clickhouse\", got %q", i, s.Type)
		}
	}
	return nil
}

// PoolPolicy returns the parsed admission policy.
func (c *Config) PoolPolicy() pool.Policy { return pool.Policy(c.Pool.Policy) }
