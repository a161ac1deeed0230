// Package config provides the engine configuration for Quern databases.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreType selects the backing-store adapter.
type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreSQLite StoreType = "sqlite"
	StoreS3     StoreType = "s3"
)

// Config holds the engine tunables.
type Config struct {
	// Store selects and configures the backing store.
	Store StoreConfig `json:"store" yaml:"store"`

	// HashJoinThreshold is the maximum build-side row count for a hash
	// join; larger joins run nested-loop.
	HashJoinThreshold int `json:"hash_join_threshold" yaml:"hash_join_threshold"`
}

// StoreConfig holds backing-store configuration.
type StoreConfig struct {
	// Type is the adapter: memory, sqlite, s3.
	Type StoreType `json:"type" yaml:"type"`

	// Path is the database file path (for sqlite).
	Path string `json:"path" yaml:"path"`

	// S3 configures the s3 adapter.
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 adapter configuration.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Prefix is the key prefix all objects live under.
	Prefix string `json:"prefix" yaml:"prefix"`

	// Region is the AWS region.
	Region string `json:"region" yaml:"region"`

	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing.
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() *Config {
	return &Config{
		Store:             StoreConfig{Type: StoreMemory},
		HashJoinThreshold: 10000,
	}
}

// Load reads a YAML configuration file, filling defaults for absent fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("malformed config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("sqlite store requires a path")
		}
	case StoreS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("s3 store requires a bucket")
		}
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	if c.HashJoinThreshold < 0 {
		return fmt.Errorf("hash_join_threshold must be non-negative")
	}
	return nil
}
