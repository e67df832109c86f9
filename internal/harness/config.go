// Copyright (c) 2025 SciGo Raster Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package harness

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	raster "github.com/scigolib/raster"
)

// Config drives one harness run. Zero fields in a YAML file keep their
// defaults.
type Config struct {
	OutputDir  string   `yaml:"output_dir"`
	Size       int      `yaml:"size"`
	Threads    int      `yaml:"threads"`
	BlockSize  int      `yaml:"block_size"`
	Formats    []string `yaml:"formats"`
	Iterations int      `yaml:"iterations"`
	LogLevel   string   `yaml:"log_level"`
}

// DefaultConfig returns the settings used when neither a file nor a flag
// says otherwise.
func DefaultConfig() Config {
	return Config{
		OutputDir: "artifacts",
		Size:      256,
		Threads:   4,
		BlockSize: 64,
		Formats:   []string{raster.FormatGTiff, raster.FormatERS},
		LogLevel:  "info",
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate rejects settings a run cannot use.
func (c Config) Validate() error {
	switch {
	case c.OutputDir == "":
		return errors.New("output directory must be set")
	case c.Size <= 0:
		return errors.Errorf("size must be positive, got %d", c.Size)
	case c.Threads <= 0:
		return errors.Errorf("threads must be positive, got %d", c.Threads)
	case c.BlockSize <= 0:
		return errors.Errorf("block size must be positive, got %d", c.BlockSize)
	case len(c.Formats) == 0:
		return errors.New("at least one format is required")
	case c.Iterations < 0:
		return errors.Errorf("iterations must not be negative, got %d", c.Iterations)
	}
	return nil
}
