// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the codegraph configuration: defaults, then an
// optional YAML file, then CODEGRAPH_* environment overrides. Invalid
// configuration is a boundary error; nothing is opened or started with
// a config that failed validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is the package validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full codegraph configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Index    IndexConfig    `yaml:"index"`
	Influx   InfluxConfig   `yaml:"influx"`
	Debug    bool           `yaml:"debug"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address for codegraph serve.
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// ShutdownGraceSeconds bounds graceful shutdown.
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds" validate:"gte=1,lte=300"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	// Path is the database file, or ":memory:" for an ephemeral graph.
	Path string `yaml:"path" validate:"required"`

	BusyTimeoutMillis int `yaml:"busy_timeout_millis" validate:"gte=0,lte=60000"`
}

// SnapshotConfig configures Badger-backed snapshots.
type SnapshotConfig struct {
	// Dir is the Badger directory. Empty disables snapshots.
	Dir string `yaml:"dir"`
}

// IndexConfig configures directory indexing.
type IndexConfig struct {
	// Workers bounds concurrent file parsing. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`

	// RemoveStale deletes tracked files missing from the indexed tree.
	RemoveStale bool `yaml:"remove_stale"`

	// SkipDirs extends the built-in skip list (node_modules, .git, …).
	SkipDirs []string `yaml:"skip_dirs"`
}

// InfluxConfig configures the optional operation sink. URL empty means
// the no-op sink.
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" validate:"required_with=URL"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:                 "localhost:8845",
			ShutdownGraceSeconds: 10,
		},
		Store: StoreConfig{
			Path:              "codegraph.db",
			BusyTimeoutMillis: 5000,
		},
		Snapshot: SnapshotConfig{
			Dir: "",
		},
		Index: IndexConfig{
			Workers:     0,
			RemoveStale: true,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty; missing files are an error so a
// typo'd -config flag cannot silently fall back), then environment
// overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Influx.URL != "" && c.Influx.Token == "" {
		return fmt.Errorf("%w: influx.token is required when influx.url is set", ErrInvalidConfig)
	}
	return nil
}

// applyEnv overlays CODEGRAPH_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CODEGRAPH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CODEGRAPH_DB"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CODEGRAPH_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("CODEGRAPH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Workers = n
		}
	}
	if v := os.Getenv("CODEGRAPH_INFLUX_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := os.Getenv("CODEGRAPH_INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("CODEGRAPH_INFLUX_ORG"); v != "" {
		cfg.Influx.Org = v
	}
	if v := os.Getenv("CODEGRAPH_INFLUX_BUCKET"); v != "" {
		cfg.Influx.Bucket = v
	}
	if v := os.Getenv("CODEGRAPH_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}
