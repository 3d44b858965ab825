// Package config loads engine configuration from TOML files.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Engine EngineConfig `koanf:"engine"`
	Audio  AudioConfig  `koanf:"audio"`
	Log    LogConfig    `koanf:"log"`
}

// EngineConfig holds the synthesis parameters.
type EngineConfig struct {
	SampleRate int     `koanf:"sample_rate"` // output sample rate in Hz
	Amplitude  float64 `koanf:"amplitude"`   // peak level after normalization, 0..1
	ChunkSize  int     `koanf:"chunk_size"`  // mixing chunk for progress reporting
	CacheCap   int     `koanf:"cache_cap"`   // note-segment cache entries
}

// AudioConfig holds playback backend settings.
type AudioConfig struct {
	PlayerCommand string `koanf:"player_command"` // override for the external player probe
}

// LogConfig holds log output settings.
type LogConfig struct {
	Level      string `koanf:"level"` // "debug", "info", "warn", "error"
	File       string `koanf:"file"`  // empty disables file logging
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

func Load() (*Config, error) {
	return loadFiles(getConfigPaths())
}

func loadFiles(paths []string) (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.SampleRate <= 0 {
		c.Engine.SampleRate = 22050
	}
	if c.Engine.Amplitude <= 0 || c.Engine.Amplitude > 1 {
		c.Engine.Amplitude = 0.45
	}
	if c.Engine.ChunkSize <= 0 {
		c.Engine.ChunkSize = 4096
	}
	if c.Engine.CacheCap <= 0 {
		c.Engine.CacheCap = 2048
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
}

func getConfigPaths() []string {
	paths := []string{
		// 1. XDG config dir
		filepath.Join(xdg.ConfigHome, "arpeggio", "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
