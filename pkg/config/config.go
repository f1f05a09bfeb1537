// Package config loads the optional .pyrite.yaml project file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file, looked up from the target
// directory upward.
const FileName = ".pyrite.yaml"

// Config holds project-level settings. Zero values mean defaults;
// the CLI overrides any field whose flag was set explicitly.
type Config struct {
	// Python is the interpreter binary blocks run under.
	Python string `yaml:"python"`

	// Suffix is the generated file suffix, e.g. "_pyrite.go".
	Suffix string `yaml:"suffix"`

	// Exclude holds gitignore-style patterns skipped during
	// enumeration, in addition to .gitignore entries.
	Exclude []string `yaml:"exclude"`

	// Rules lists extra lint rule YAML files, relative to the config
	// file's directory.
	Rules []string `yaml:"rules"`

	// Cache is the cache database path. Empty disables caching.
	Cache string `yaml:"cache"`
}

// Load reads a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Relative paths resolve against the config file's directory, not
	// wherever the command happens to run from.
	base := filepath.Dir(path)
	for i, r := range cfg.Rules {
		if !filepath.IsAbs(r) {
			cfg.Rules[i] = filepath.Join(base, r)
		}
	}
	if cfg.Cache != "" && !filepath.IsAbs(cfg.Cache) {
		cfg.Cache = filepath.Join(base, cfg.Cache)
	}
	return &cfg, nil
}

// Find locates FileName starting at dir and walking toward the
// filesystem root. It returns the empty string when no config exists.
func Find(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadDir loads the config governing dir. A missing file is not an
// error; it yields the zero config.
func LoadDir(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return &Config{}, nil
	}
	return Load(path)
}
