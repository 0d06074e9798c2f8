// Package config loads the storage engine's StorageConfig: the root
// path, the epoch preset, and the node id used in coordination-free mode.
// It follows the teacher's internal/config convention of a viper-backed
// struct with env-var overrides, adapted from yaml-only keys to a single
// small config object persisted once at init time.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"rhizo/internal/txn"
)

// EnvPrefix is the environment variable prefix viper watches for
// overrides, e.g. RHIZO_ROOT, RHIZO_EPOCH_PRESET, RHIZO_NODE_ID.
const EnvPrefix = "RHIZO"

// StorageConfig is the top-level configuration for one engine instance.
type StorageConfig struct {
	FormatVersion int    `json:"format_version" mapstructure:"format_version"`
	Root          string `json:"root" mapstructure:"root"`
	EpochPreset   string `json:"epoch_preset" mapstructure:"epoch_preset"`
	NodeID        string `json:"node_id" mapstructure:"node_id"`
}

const currentFormatVersion = 1

// Default returns a StorageConfig with the single_node epoch preset and
// no node id set (the caller must assign one before using coordination-free
// mode).
func Default(root string) StorageConfig {
	return StorageConfig{
		FormatVersion: currentFormatVersion,
		Root:          root,
		EpochPreset:   "single_node",
		NodeID:        "",
	}
}

// EpochConfig resolves the named preset to a txn.Config. Unknown names
// fall back to SingleNodeConfig.
func (c StorageConfig) EpochConfig() txn.Config {
	switch strings.ToLower(c.EpochPreset) {
	case "high_throughput":
		return txn.HighThroughputConfig
	case "low_latency":
		return txn.LowLatencyConfig
	default:
		return txn.SingleNodeConfig
	}
}

// Load reads a StorageConfig from a YAML or TOML file (by extension) at
// path, applying RHIZO_-prefixed environment variable overrides on top,
// the way the teacher's config.yaml loader layers file values under
// startup env vars.
func Load(path string) (StorageConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("format_version", currentFormatVersion)
	v.SetDefault("epoch_preset", "single_node")

	if err := v.ReadInConfig(); err != nil {
		return StorageConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg StorageConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return StorageConfig{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// LoadTOML reads a StorageConfig from a TOML file directly via
// BurntSushi/toml, the format the CLI harness's rhizo.toml uses — viper
// can parse TOML too, but the CLI's own config file round-trips through
// the same library the teacher uses for its other TOML-adjacent tooling.
func LoadTOML(path string) (StorageConfig, error) {
	cfg := Default("")
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return StorageConfig{}, fmt.Errorf("config: decode toml %s: %w", path, err)
	}
	if cfg.FormatVersion == 0 {
		cfg.FormatVersion = currentFormatVersion
	}
	return cfg, nil
}

// WriteTOML persists cfg as rhizo.toml at path.
func WriteTOML(path string, cfg StorageConfig) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode toml: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
