package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
address = "10.0.1.7:2401"
dial_timeout = "2s"
op_timeout = "30s"
max_read_size = 16384
max_write_size = 8192
`)

	cfg, err := loadConfig(options{configPath: path})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Address != "10.0.1.7:2401" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.DialTimeout != 2*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.OpTimeout != 30*time.Second {
		t.Fatalf("unexpected op timeout: %v", cfg.OpTimeout)
	}
	if cfg.MaxReadSize != 16384 || cfg.MaxWriteSize != 8192 {
		t.Fatalf("unexpected chunk sizes: %d/%d", cfg.MaxReadSize, cfg.MaxWriteSize)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	path := writeConfig(t, `
address = "10.0.1.7:2401"
dial_timeout = "2s"
`)

	cfg, err := loadConfig(options{
		configPath:  path,
		addr:        "192.168.4.2:2401",
		dialTimeout: 250 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Address != "192.168.4.2:2401" {
		t.Fatalf("flag did not override address: %q", cfg.Address)
	}
	if cfg.DialTimeout != 250*time.Millisecond {
		t.Fatalf("flag did not override dial timeout: %v", cfg.DialTimeout)
	}
}

func TestLoadConfigAddressRequired(t *testing.T) {
	if _, err := loadConfig(options{}); err == nil {
		t.Fatalf("expected an error without an address")
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `
address = "10.0.1.7:2401"
op_timeout = "soon"
`)
	if _, err := loadConfig(options{configPath: path}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadConfigBadChunkSize(t *testing.T) {
	path := writeConfig(t, `
address = "10.0.1.7:2401"
max_read_size = -1
`)
	if _, err := loadConfig(options{configPath: path}); err == nil {
		t.Fatalf("expected range error")
	}
}
