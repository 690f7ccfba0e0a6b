// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Source SourceConfig `toml:"source"`
	Query  QueryConfig  `toml:"query"`
	Log    LogConfig    `toml:"log"`
}

// SourceConfig maps dataset download settings.
type SourceConfig struct {
	URL     *string `toml:"url"`
	Timeout *string `toml:"timeout"`
}

// QueryConfig maps query defaults.
type QueryConfig struct {
	Offline *bool `toml:"offline"`
	Plot    *bool `toml:"plot"`
}

// LogConfig maps logger settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// TimeoutDuration parses the configured timeout. ok is false when unset.
func (c SourceConfig) TimeoutDuration() (d time.Duration, ok bool, err error) {
	if c.Timeout == nil {
		return 0, false, nil
	}
	d, err = time.ParseDuration(strings.TrimSpace(*c.Timeout))
	if err != nil {
		return 0, false, fmt.Errorf("invalid source.timeout %q: %w", *c.Timeout, err)
	}
	if d <= 0 {
		return 0, false, fmt.Errorf("source.timeout must be positive")
	}
	return d, true, nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if _, _, err := cfg.Source.TimeoutDuration(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}
