// Package config loads kvcached's YAML configuration file. Every field
// has a built-in default, so an absent config file still yields a
// fully runnable configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type ListenConfig struct {
	TCPAddr   string `yaml:"tcp_addr"`
	AdminAddr string `yaml:"admin_addr"`
}

type JournalConfig struct {
	Path                      string `yaml:"path"`
	CompactionThresholdBytes  int64  `yaml:"compaction_threshold_bytes"`
	BackgroundFlushIntervalMs int    `yaml:"background_flush_interval_ms"`
	CompactionCheckIntervalS  int    `yaml:"compaction_check_interval_s"`
}

type StoreConfig struct {
	ShardCount int `yaml:"shard_count"`
}

type BatcherConfig struct {
	SizeThreshold   int `yaml:"size_threshold"`
	FlushIntervalMs int `yaml:"flush_interval_ms"`
}

type MetricsConfig struct {
	SampleCap int `yaml:"sample_cap"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Journal JournalConfig `yaml:"journal"`
	Store   StoreConfig   `yaml:"store"`
	Batcher BatcherConfig `yaml:"batcher"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns kvcached's built-in configuration, used as-is when no
// config file is given and as the base that a supplied file's fields
// are layered over.
func Default() Config {
	return Config{
		Listen: ListenConfig{
			TCPAddr:   ":8080",
			AdminAddr: "",
		},
		Journal: JournalConfig{
			Path:                      "../data/wal.log",
			CompactionThresholdBytes:  100 * 1024 * 1024,
			BackgroundFlushIntervalMs: 100,
			CompactionCheckIntervalS:  60,
		},
		Store: StoreConfig{
			ShardCount: 16,
		},
		Batcher: BatcherConfig{
			SizeThreshold:   50,
			FlushIntervalMs: 10,
		},
		Metrics: MetricsConfig{
			SampleCap: 10000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses the YAML file at path, layering it over Default()
// so an omitted field keeps its compile-time-equivalent value. A missing
// file is not an error — it just yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that would break the engine's invariants
// rather than letting them fail confusingly deep inside a component.
func (c Config) Validate() error {
	if c.Store.ShardCount <= 0 {
		return fmt.Errorf("config: store.shard_count must be positive, got %d", c.Store.ShardCount)
	}
	if c.Journal.CompactionThresholdBytes <= 0 {
		return fmt.Errorf("config: journal.compaction_threshold_bytes must be positive, got %d", c.Journal.CompactionThresholdBytes)
	}
	if c.Journal.BackgroundFlushIntervalMs <= 0 {
		return fmt.Errorf("config: journal.background_flush_interval_ms must be positive, got %d", c.Journal.BackgroundFlushIntervalMs)
	}
	if c.Journal.CompactionCheckIntervalS <= 0 {
		return fmt.Errorf("config: journal.compaction_check_interval_s must be positive, got %d", c.Journal.CompactionCheckIntervalS)
	}
	if c.Batcher.SizeThreshold <= 0 {
		return fmt.Errorf("config: batcher.size_threshold must be positive, got %d", c.Batcher.SizeThreshold)
	}
	if c.Batcher.FlushIntervalMs <= 0 {
		return fmt.Errorf("config: batcher.flush_interval_ms must be positive, got %d", c.Batcher.FlushIntervalMs)
	}
	if c.Metrics.SampleCap <= 0 {
		return fmt.Errorf("config: metrics.sample_cap must be positive, got %d", c.Metrics.SampleCap)
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("config: journal.path must not be empty")
	}
	return nil
}
