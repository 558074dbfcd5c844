// Package config loads the converter's configuration, mirroring the
// teacher's viper/TOML-driven Config in shape and loading order while
// covering only what this tool needs: paths, conversion limits,
// logging, and the storage/compression backends the node store and
// catalogue writer can use.
package config

import "fmt"

// Config is the converter's complete configuration.
type Config struct {
	// Input is the v1 catalogue file to read (or, when empty, a
	// synthetic v1stream is used instead).
	Input string `toml:"input" mapstructure:"input"`
	// Output is the v2 catalogue file to write.
	Output string `toml:"output" mapstructure:"output"`
	// MaxLedgers caps how many ledgers are converted; 0 means all.
	MaxLedgers int `toml:"max_ledgers" mapstructure:"max_ledgers"`
	// VerifyAndTest re-opens the output file after writing, checks that
	// the last ledger is readable and that the file's checksum is the
	// same across two opens. No tree hash is recomputed.
	VerifyAndTest bool `toml:"verify_and_test" mapstructure:"verify_and_test"`

	LogLevel string `toml:"log_level" mapstructure:"log_level"`

	NodeStore NodeStoreConfig `toml:"node_store" mapstructure:"node_store"`
	Writer    WriterConfig    `toml:"writer" mapstructure:"writer"`
	Walk      WalkConfig      `toml:"walk" mapstructure:"walk"`

	// configPath records where this Config was loaded from, for
	// GetConfigPath; empty when built programmatically (tests, the
	// Default() constructor).
	configPath string `toml:"-" mapstructure:"-"`
}

// NodeStoreConfig selects and tunes the persistent node backend.
type NodeStoreConfig struct {
	// Backend is "memory" or "pebble".
	Backend          string `toml:"backend" mapstructure:"backend"`
	Path             string `toml:"path" mapstructure:"path"`
	CacheSize        int    `toml:"cache_size" mapstructure:"cache_size"`
	CacheTTLSeconds  int    `toml:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

// WriterConfig tunes the catalogue v2 writer.
type WriterConfig struct {
	// Compression is "none" or "lz4".
	Compression          string `toml:"compression" mapstructure:"compression"`
	CompressThresholdBytes int  `toml:"compress_threshold_bytes" mapstructure:"compress_threshold_bytes"`
	WithIndex            bool   `toml:"with_index" mapstructure:"with_index"`
}

// WalkConfig tunes --walk-state/--walk-txns.
type WalkConfig struct {
	Parallel bool `toml:"parallel" mapstructure:"parallel"`
	Prefetch bool `toml:"prefetch" mapstructure:"prefetch"`
	Threads  int  `toml:"threads" mapstructure:"threads"`
}

// Default returns a Config with rippled-catalogue-converter-ish
// sensible defaults: an in-memory node store, no compression, serial
// walks.
func Default() *Config {
	return &Config{
		MaxLedgers:    0,
		VerifyAndTest: false,
		LogLevel:      "info",
		NodeStore: NodeStoreConfig{
			Backend:         "memory",
			CacheSize:       10000,
			CacheTTLSeconds: 300,
		},
		Writer: WriterConfig{
			Compression:            "none",
			CompressThresholdBytes: 256,
			WithIndex:              true,
		},
		Walk: WalkConfig{
			Parallel: false,
			Prefetch: false,
			Threads:  1,
		},
	}
}

// GetConfigPath returns the path this Config was loaded from, or "" if
// it was built programmatically.
func (c *Config) GetConfigPath() string { return c.configPath }

// Validate checks field-level constraints the loader can't express via
// defaults alone.
func (c *Config) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("config: output path is required")
	}
	if c.MaxLedgers < 0 {
		return fmt.Errorf("config: max_ledgers must be non-negative, got %d", c.MaxLedgers)
	}
	switch c.LogLevel {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("config: invalid log_level %q (valid: error, warn, info, debug)", c.LogLevel)
	}
	if err := c.NodeStore.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Writer.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Walk.Threads < 0 {
		return fmt.Errorf("config: walk.threads must be non-negative, got %d", c.Walk.Threads)
	}
	return nil
}

// Validate checks NodeStoreConfig's fields.
func (n *NodeStoreConfig) Validate() error {
	switch n.Backend {
	case "memory":
	case "pebble":
		if n.Path == "" {
			return fmt.Errorf("node_store.path is required for the pebble backend")
		}
	default:
		return fmt.Errorf("invalid node_store.backend %q (valid: memory, pebble)", n.Backend)
	}
	if n.CacheSize < 0 {
		return fmt.Errorf("node_store.cache_size must be non-negative, got %d", n.CacheSize)
	}
	return nil
}

// Validate checks WriterConfig's fields.
func (w *WriterConfig) Validate() error {
	switch w.Compression {
	case "none", "lz4":
	default:
		return fmt.Errorf("invalid writer.compression %q (valid: none, lz4)", w.Compression)
	}
	if w.CompressThresholdBytes < 0 {
		return fmt.Errorf("writer.compress_threshold_bytes must be non-negative, got %d", w.CompressThresholdBytes)
	}
	return nil
}
