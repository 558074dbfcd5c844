package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from multiple sources in priority order:
//  1. Default values (Default())
//  2. Configuration file at configPath, if non-empty and present
//  3. Environment variables (CATLCONV_ prefix)
//
// CLI flag overrides are not applied here: Load builds its own Viper
// instance, and cmd/catlconv overwrites the returned Config's fields
// from its flags afterwards.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if _, err := os.Stat(configPath); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("CATLCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	cfg.configPath = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults seeds viper with Default()'s values so that a config
// file or environment variable only needs to override what it cares
// about, matching the teacher's setDefaults(v) convention.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("max_ledgers", d.MaxLedgers)
	v.SetDefault("verify_and_test", d.VerifyAndTest)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("node_store.backend", d.NodeStore.Backend)
	v.SetDefault("node_store.cache_size", d.NodeStore.CacheSize)
	v.SetDefault("node_store.cache_ttl_seconds", d.NodeStore.CacheTTLSeconds)

	v.SetDefault("writer.compression", d.Writer.Compression)
	v.SetDefault("writer.compress_threshold_bytes", d.Writer.CompressThresholdBytes)
	v.SetDefault("writer.with_index", d.Writer.WithIndex)

	v.SetDefault("walk.parallel", d.Walk.Parallel)
	v.SetDefault("walk.prefetch", d.Walk.Prefetch)
	v.SetDefault("walk.threads", d.Walk.Threads)
}
