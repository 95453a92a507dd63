// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadServerConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
stream:
  enabled: true
  listen: "127.0.0.1:9000"
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults: got %+v", cfg.Logging)
	}
	if cfg.RateLimit.Parsed() != 0 {
		t.Errorf("expected rate limit disabled by default, got %d", cfg.RateLimit.Parsed())
	}
}

func TestLoadServerConfigParsesRateLimit(t *testing.T) {
	path := writeConfig(t, `
rate_limit:
  bytes_per_second: "2mb"
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if got, want := cfg.RateLimit.Parsed(), int64(2<<20); got != want {
		t.Errorf("bytes per second: got %d, want %d", got, want)
	}
}

func TestLoadServerConfigRejectsBadRateLimit(t *testing.T) {
	path := writeConfig(t, `
rate_limit:
  bytes_per_second: "not-a-size"
`)
	if _, err := LoadServerConfig(path); err == nil {
		t.Fatal("expected an error for an invalid rate_limit value")
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
address: "127.0.0.1:9000"
`)
	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.Transport != "stream" {
		t.Errorf("transport default: got %q", cfg.Transport)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("timeout default: got %v", cfg.Timeout)
	}
}

func TestLoadClientConfigMissingFile(t *testing.T) {
	if _, err := LoadClientConfig("/nonexistent/path.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
