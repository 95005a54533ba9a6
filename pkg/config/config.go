// Package config is the node's configuration loader, adapted from the
// teacher's pkg/config/config.go: a viper-backed reader of a YAML file
// plus `.env`/environment overrides, unmarshaled into a mapstructure-
// tagged struct. Unlike the teacher's network/VM-focused schema, this one
// recognizes exactly the keys the consensus, storage and VM collaborators
// of this node need, plus a logging.level field the ambient stack uses.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified node configuration.
type Config struct {
	Consensus struct {
		CommitteeRotationIntervalSeconds int `mapstructure:"committee_rotation_interval" json:"committee_rotation_interval"`
		WaveFinalizationThresholdMS      int `mapstructure:"wave_finalization_threshold" json:"wave_finalization_threshold"`
		GoldenWaveThresholdMS            int `mapstructure:"golden_wave_threshold" json:"golden_wave_threshold"`
		MaxTransactionsPerBlock          int `mapstructure:"max_transactions_per_block" json:"max_transactions_per_block"`
	} `mapstructure:"consensus" json:"consensus"`

	Storage struct {
		DBPath          string `mapstructure:"db_path" json:"db_path"`
		BlobStoragePath string `mapstructure:"blob_storage_path" json:"blob_storage_path"`
		MaxBlobSize     int    `mapstructure:"max_blob_size" json:"max_blob_size"`
		BlobChunkSize   int    `mapstructure:"blob_chunk_size" json:"blob_chunk_size"`
	} `mapstructure:"storage" json:"storage"`

	VM struct {
		GasLimit uint64 `mapstructure:"gas_limit" json:"gas_limit"`
		GasPrice uint64 `mapstructure:"gas_price" json:"gas_price"`
	} `mapstructure:"vm" json:"vm"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load, mirroring the
// teacher's package-level AppConfig convention.
var AppConfig Config

// setDefaults mirrors the values a fresh `hazenode genesis` writes out.
func setDefaults(v *viper.Viper) {
	v.SetDefault("consensus.committee_rotation_interval", 3600)
	v.SetDefault("consensus.wave_finalization_threshold", 0)
	v.SetDefault("consensus.golden_wave_threshold", 2000)
	v.SetDefault("consensus.max_transactions_per_block", 500)
	v.SetDefault("storage.db_path", "./data/chain.db")
	v.SetDefault("storage.blob_storage_path", "./data/blobs")
	v.SetDefault("storage.max_blob_size", 50*1024*1024)
	v.SetDefault("storage.blob_chunk_size", 1024*1024)
	v.SetDefault("vm.gas_limit", 10_000_000)
	v.SetDefault("vm.gas_price", 1)
	v.SetDefault("logging.level", "info")
}

// Load reads configPath (a YAML file) via viper, applies `.env` and
// process-environment overrides (prefixed HAZE_), and stores the result
// in AppConfig. A missing envFile is not an error; a non-empty configPath
// that cannot be read is.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("haze")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &AppConfig, nil
}

// Default returns a Config populated with the same defaults Load would
// apply to an empty/absent file, used by `hazenode genesis` and tests.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
