// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcconfig loads the YAML configuration for fiberpc's example
// binaries (cmd/fiberpc-echo, cmd/fiberpc-healthmon): plain structs
// with yaml tags, a Load function per config kind, and the rate-limit
// size field parsed from a human-readable string after unmarshal.
package rpcconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures cmd/fiberpc-echo when run as a server.
type ServerConfig struct {
	Datagram  ListenConfig    `yaml:"datagram"`
	Stream    ListenConfig    `yaml:"stream"`
	Local     LocalConfig     `yaml:"local"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ClientConfig configures cmd/fiberpc-echo when run as a client, and
// cmd/fiberpc-healthmon's target.
type ClientConfig struct {
	Transport string        `yaml:"transport"` // "datagram", "stream", or "local"
	Address   string        `yaml:"address"`
	Timeout   time.Duration `yaml:"timeout"` // default: 5s
	Logging   LoggingConfig `yaml:"logging"`
}

// ListenConfig enables and addresses one of the TCP/UDP engines.
type ListenConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LocalConfig enables and paths the Unix-socket engine.
type LocalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RateLimitConfig caps the stream engine's per-connection outbound
// byte rate. BytesPerSecond accepts suffixes (kb, mb, gb); "0" or an
// empty string disables throttling.
type RateLimitConfig struct {
	BytesPerSecond string `yaml:"bytes_per_second"`
	bytesPerSecond int64  // parsed by LoadServerConfig
}

// Parsed returns the parsed byte rate, or 0 if disabled.
func (r RateLimitConfig) Parsed() int64 { return r.bytesPerSecond }

// MetricsConfig enables the Prometheus /metrics exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // default: "127.0.0.1:9849"
}

// LoggingConfig maps onto internal/nblog.Options.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // default: "json"
	File   string `yaml:"file"`
}

// LoadServerConfig reads and validates a ServerConfig from path.
func LoadServerConfig(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9849"
	}
	bps, err := parseSize(cfg.RateLimit.BytesPerSecond)
	if err != nil {
		return nil, fmt.Errorf("rate_limit.bytes_per_second: %w", err)
	}
	cfg.RateLimit.bytesPerSecond = bps
	return &cfg, nil
}

// LoadClientConfig reads and validates a ClientConfig from path.
func LoadClientConfig(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Transport == "" {
		cfg.Transport = "stream"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	return &cfg, nil
}

func load(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	return nil
}

// parseSize parses a human size string with an optional kb/mb/gb
// suffix into bytes. An empty string is 0 (disabled).
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "gb"):
		mult = 1 << 30
		s = strings.TrimSuffix(s, "gb")
	case strings.HasSuffix(s, "mb"):
		mult = 1 << 20
		s = strings.TrimSuffix(s, "mb")
	case strings.HasSuffix(s, "kb"):
		mult = 1 << 10
		s = strings.TrimSuffix(s, "kb")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * mult, nil
}
