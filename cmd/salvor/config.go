package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the salvor configuration file (~/.config/salvor/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	OutDir string `yaml:"out_dir"`

	// Assembly defaults
	Recenter     *bool    `yaml:"recenter"`
	Normalize    *bool    `yaml:"normalize"`
	TargetExtent *float64 `yaml:"target_extent"`

	// Engine
	MaxCandidates *int64 `yaml:"max_candidates"`
	MinViable     *int64 `yaml:"min_viable"`

	// Output
	Format    string `yaml:"format"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	DataDir       string `yaml:"data_dir"`
	TTL           string `yaml:"ttl"`
	MaxUpload     *int64 `yaml:"max_upload"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "salvor", "config.yaml")
}

// applyRecoverConfig applies config file defaults to the recover/convert
// command variables when the corresponding CLI flag was not explicitly set.
func applyRecoverConfig(c *cli.Command, cfg Config) {
	if cfg.Format != "" && !c.IsSet("format") && !c.IsSet("f") {
		outputFormat = cfg.Format
	}
	if cfg.Recenter != nil && !c.IsSet("recenter") {
		recenter = *cfg.Recenter
	}
	if cfg.Normalize != nil && !c.IsSet("normalize") {
		normalize = *cfg.Normalize
	}
	if cfg.TargetExtent != nil && !c.IsSet("target-extent") {
		targetExtent = *cfg.TargetExtent
	}
	if cfg.MaxCandidates != nil && !c.IsSet("max-candidates") {
		maxCandidates = *cfg.MaxCandidates
	}
	if cfg.MinViable != nil && !c.IsSet("min-viable") {
		minViable = *cfg.MinViable
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr, dataDir *string, ttl *time.Duration, maxUpload *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.DataDir != "" && !c.IsSet("data-dir") {
		*dataDir = cfg.DataDir
	}
	if cfg.TTL != "" && !c.IsSet("ttl") {
		if d, err := time.ParseDuration(cfg.TTL); err == nil {
			*ttl = d
		}
	}
	if cfg.MaxUpload != nil && !c.IsSet("max-upload") {
		*maxUpload = *cfg.MaxUpload
	}
	if cfg.Recenter != nil && !c.IsSet("recenter") {
		recenter = *cfg.Recenter
	}
	if cfg.Normalize != nil && !c.IsSet("normalize") {
		normalize = *cfg.Normalize
	}
	if cfg.TargetExtent != nil && !c.IsSet("target-extent") {
		targetExtent = *cfg.TargetExtent
	}
	if cfg.MaxCandidates != nil && !c.IsSet("max-candidates") {
		maxCandidates = *cfg.MaxCandidates
	}
	if cfg.MinViable != nil && !c.IsSet("min-viable") {
		minViable = *cfg.MinViable
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
