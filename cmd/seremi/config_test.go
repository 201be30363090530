package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("data_dir: /srv/tia\nlog_level: debug\nserver_address: 0.0.0.0:9000\nexport_codec: lz4\nno_mmap: true\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile returned error: %v", err)
	}
	if cfg.DataDir != "/srv/tia" || cfg.LogLevel != "debug" || cfg.ServerAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ExportCodec != "lz4" {
		t.Fatalf("unexpected export codec: %q", cfg.ExportCodec)
	}
	if cfg.NoMmap == nil || !*cfg.NoMmap {
		t.Fatalf("expected no_mmap to be set")
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	if _, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("data_dir: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfigFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadConfigFromUserConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	if got := LoadConfig(); got != (Config{}) {
		t.Fatalf("expected zero config without a file, got %+v", got)
	}

	dir := filepath.Dir(configPath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(configPath(), []byte("log_format: json\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if got := LoadConfig(); got.LogFormat != "json" {
		t.Fatalf("unexpected config: %+v", got)
	}
}
