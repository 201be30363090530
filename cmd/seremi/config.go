package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the seremi configuration file (~/.config/seremi/config.yaml).
// Empty strings and nil pointers mean "not set".
type Config struct {
	DataDir string `yaml:"data_dir"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`

	// Export
	ExportCodec string `yaml:"export_codec"`

	NoMmap *bool `yaml:"no_mmap"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "seremi", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't
// exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return Config{}
	}
	return cfg
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyGlobalConfig applies config file defaults to the root flags when the
// corresponding flag was not explicitly set.
func applyGlobalConfig(c *cli.Command, cfg Config, level, format *string, noMmap *bool) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		*level = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		*format = cfg.LogFormat
	}
	if cfg.NoMmap != nil && !c.IsSet("no-mmap") {
		*noMmap = *cfg.NoMmap
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, dir, addr *string) {
	if cfg.DataDir != "" && !c.IsSet("dir") {
		*dir = cfg.DataDir
	}
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// applyExportConfig applies config file defaults to export command variables.
func applyExportConfig(c *cli.Command, cfg Config, codec *string) {
	if cfg.ExportCodec != "" && !c.IsSet("codec") {
		*codec = cfg.ExportCodec
	}
}
