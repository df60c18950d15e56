// Package config loads the server configuration from a YAML file, falling
// back to defaults when no file is present.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/0xRadioAc7iv/go-caskdb/core"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 5000

	DefaultReplicaTimeoutMS = 2000
)

// Config holds everything the server binary needs to run a node.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	DataDir     string `yaml:"data_dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
	SyncOnWrite bool   `yaml:"sync_on_write"`
	CacheSize   int    `yaml:"cache_size"`

	Replicas         []string `yaml:"replicas"`
	ReplicaTimeoutMS int      `yaml:"replica_timeout_ms"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the logger flavor for the binary.
type LogConfig struct {
	JSON bool `yaml:"json"`
}

// Default returns a baseline single-node config.
func Default() Config {
	return Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		DataDir:          "data",
		MaxFileSize:      core.DefaultMaxFileSize,
		SyncOnWrite:      true,
		CacheSize:        core.DefaultCacheSize,
		ReplicaTimeoutMS: DefaultReplicaTimeoutMS,
	}
}

// Load reads the config file at path. A missing file is not an error: the
// defaults are returned instead.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.ReplicaTimeoutMS <= 0 {
		cfg.ReplicaTimeoutMS = DefaultReplicaTimeoutMS
	}

	return cfg, nil
}
