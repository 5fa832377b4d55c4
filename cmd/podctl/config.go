package main

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/podlink/podfs/internal/logging"
)

// fileConfig mirrors the optional podctl TOML file. Absent keys keep
// their defaults; flags override both.
type fileConfig struct {
	Address      string `toml:"address"`
	DialTimeout  string `toml:"dial_timeout"`
	OpTimeout    string `toml:"op_timeout"`
	MaxReadSize  int64  `toml:"max_read_size"`
	MaxWriteSize int64  `toml:"max_write_size"`
	LogLevel     string `toml:"log_level"`
}

type clientConfig struct {
	Address      string
	DialTimeout  time.Duration
	OpTimeout    time.Duration
	MaxReadSize  uint32
	MaxWriteSize uint32
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		DialTimeout: 5 * time.Second,
	}
}

func loadConfig(opts options) (clientConfig, error) {
	cfg := defaultClientConfig()

	if opts.configPath != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(opts.configPath, &raw)
		if err != nil {
			return clientConfig{}, fmt.Errorf("load config: %w", err)
		}

		if meta.IsDefined("address") {
			cfg.Address = strings.TrimSpace(raw.Address)
		}
		if meta.IsDefined("dial_timeout") {
			d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
			if err != nil {
				return clientConfig{}, fmt.Errorf("parse dial_timeout: %w", err)
			}
			cfg.DialTimeout = d
		}
		if meta.IsDefined("op_timeout") {
			d, err := time.ParseDuration(strings.TrimSpace(raw.OpTimeout))
			if err != nil {
				return clientConfig{}, fmt.Errorf("parse op_timeout: %w", err)
			}
			cfg.OpTimeout = d
		}
		if meta.IsDefined("max_read_size") {
			v, err := chunkSize(raw.MaxReadSize)
			if err != nil {
				return clientConfig{}, fmt.Errorf("max_read_size: %w", err)
			}
			cfg.MaxReadSize = v
		}
		if meta.IsDefined("max_write_size") {
			v, err := chunkSize(raw.MaxWriteSize)
			if err != nil {
				return clientConfig{}, fmt.Errorf("max_write_size: %w", err)
			}
			cfg.MaxWriteSize = v
		}
		if meta.IsDefined("log_level") {
			lvl, ok := logging.ParseLevel(raw.LogLevel)
			if !ok {
				return clientConfig{}, fmt.Errorf("parse log_level: %q", raw.LogLevel)
			}
			zerolog.SetGlobalLevel(lvl)
		}
	}

	if opts.addr != "" {
		cfg.Address = opts.addr
	}
	if opts.dialTimeout > 0 {
		cfg.DialTimeout = opts.dialTimeout
	}
	if opts.opTimeout > 0 {
		cfg.OpTimeout = opts.opTimeout
	}

	if cfg.Address == "" {
		return clientConfig{}, errors.New("no device address: set -addr or the config file's address key")
	}
	return cfg, nil
}

func chunkSize(v int64) (uint32, error) {
	if v <= 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("size %d out of range", v)
	}
	return uint32(v), nil
}
