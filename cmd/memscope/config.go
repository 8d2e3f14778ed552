package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/memscope/memscope"
	"github.com/memscope/memscope/internal/logutil"
)

// Config is the optional YAML configuration of the CLI. Every field has a
// working default, so running without a config file is fine.
type Config struct {
	// Directory holds heap region files and file-backed segments.
	Directory string `yaml:"directory"`
	// Backing is "shm" (default) or "file" for partition segments.
	Backing  string         `yaml:"backing"`
	Geometry GeometryConfig `yaml:"geometry"`
	Log      logutil.Config `yaml:"log"`
}

type GeometryConfig struct {
	WordSize     int `yaml:"word_size"`
	SmallClasses int `yaml:"small_classes"`
	LargeClasses int `yaml:"large_classes"`
}

func (g GeometryConfig) toGeometry() memscope.Geometry {
	geo := memscope.DefaultGeometry()
	if g.WordSize != 0 {
		geo.WordSize = g.WordSize
	}
	if g.SmallClasses != 0 {
		geo.SmallClassCount = g.SmallClasses
	}
	if g.LargeClasses != 0 {
		geo.LargeClassCount = g.LargeClasses
	}
	return geo
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Errorf("could not read config %s: %s", path, err.Error())
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Errorf("could not parse config %s: %s", path, err.Error())
	}
	if cfg.Backing != "" && cfg.Backing != "shm" && cfg.Backing != "file" {
		return cfg, errors.Errorf("backing must be \"shm\" or \"file\", not %q", cfg.Backing)
	}
	return cfg, nil
}
