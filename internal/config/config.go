// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/blinklabs-io/agora/database/plugin"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "agora.config"

const (
	EnvPrefix               = "agora"
	DefaultShutdownTimeout  = "30s"
	DefaultBlockInterval    = "2s"
	DefaultBlobPlugin       = "badger"
	DefaultMetadataPlugin   = "sqlite"
	DefaultRedisChannel     = "agora.events"
	DefaultApiListenAddress = ":8080"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Database *databaseConfig `yaml:"database,omitempty" toml:"database,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"     toml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"  toml:"level"`
	Format string `yaml:"format" toml:"format"`
	// Rotated log file written alongside stdout
	File string `yaml:"file"   toml:"file"`
}

// SlogLevel maps the configured level name to a slog level
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("invalid log level: %q", l.Level)
	}
	return level, nil
}

type EventsConfig struct {
	RedisAddress  string `yaml:"redisAddress"  toml:"redisAddress"  split_words:"true"`
	RedisPassword string `yaml:"redisPassword" toml:"redisPassword" split_words:"true"`
	RedisChannel  string `yaml:"redisChannel"  toml:"redisChannel"  split_words:"true"`
	RedisDB       int    `yaml:"redisDb"       toml:"redisDb"       envconfig:"REDIS_DB"`
}

type Config struct {
	Logging          LoggingConfig `yaml:"logging"          toml:"logging"`
	Events           EventsConfig  `yaml:"events"           toml:"events"`
	MetadataPlugin   string        `yaml:"metadataPlugin"   toml:"metadataPlugin"   envconfig:"AGORA_DATABASE_METADATA_PLUGIN"`
	BlobPlugin       string        `yaml:"blobPlugin"       toml:"blobPlugin"       envconfig:"AGORA_DATABASE_BLOB_PLUGIN"`
	DatabasePath     string        `yaml:"databasePath"     toml:"databasePath"                                               split_words:"true"`
	ApiListenAddress string        `yaml:"apiListenAddress" toml:"apiListenAddress"                                           split_words:"true"`
	BindAddr         string        `yaml:"bindAddr"         toml:"bindAddr"                                                   split_words:"true"`
	ShutdownTimeout  string        `yaml:"shutdownTimeout"  toml:"shutdownTimeout"                                            split_words:"true"`
	BlockInterval    string        `yaml:"blockInterval"    toml:"blockInterval"                                              split_words:"true"`
	Ledger           ledger.Params `yaml:"ledger"           toml:"ledger"`
	MempoolCapacity  int64         `yaml:"mempoolCapacity"  toml:"mempoolCapacity"                                            split_words:"true"`
	MempoolMaxTxs    int           `yaml:"mempoolMaxTxs"    toml:"mempoolMaxTxs"                                              split_words:"true"`
	MaxBlockTxs      int           `yaml:"maxBlockTxs"      toml:"maxBlockTxs"                                                split_words:"true"`
	MetricsPort      uint          `yaml:"metricsPort"      toml:"metricsPort"                                                split_words:"true"`
	Tracing          bool          `yaml:"tracing"          toml:"tracing"`
	TracingStdout    bool          `yaml:"tracingStdout"    toml:"tracingStdout"                                              split_words:"true"`
}

// ShutdownTimeoutDuration parses the configured shutdown timeout
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return time.ParseDuration(DefaultShutdownTimeout)
	}
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return d, nil
}

// BlockIntervalDuration parses the configured block interval
func (c *Config) BlockIntervalDuration() (time.Duration, error) {
	if c.BlockInterval == "" {
		return time.ParseDuration(DefaultBlockInterval)
	}
	d, err := time.ParseDuration(c.BlockInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid block interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid block interval: %s", c.BlockInterval)
	}
	return d, nil
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Events: EventsConfig{
			RedisChannel: DefaultRedisChannel,
		},
		BlobPlugin:       DefaultBlobPlugin,
		MetadataPlugin:   DefaultMetadataPlugin,
		DatabasePath:     ".agora",
		ApiListenAddress: DefaultApiListenAddress,
		BindAddr:         "0.0.0.0",
		ShutdownTimeout:  DefaultShutdownTimeout,
		BlockInterval:    DefaultBlockInterval,
		Ledger:           ledger.DefaultParams(),
		MempoolCapacity:  16 * 1024 * 1024,
		MempoolMaxTxs:    10000,
		MaxBlockTxs:      500,
		MetricsPort:      12798,
	}
}

var globalConfig = defaultConfig()

// findConfigFile returns the first config file found in the default
// locations, or an empty string
func findConfigFile() string {
	candidates := []string{"agora.yaml", "agora.toml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(
			candidates,
			filepath.Join(homeDir, ".agora", "agora.yaml"),
			filepath.Join(homeDir, ".agora", "agora.toml"),
		)
	}
	candidates = append(
		candidates,
		"/etc/agora/agora.yaml",
		"/etc/agora/agora.toml",
	)
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func unmarshalFunc(configFile string) func([]byte, any) error {
	if strings.EqualFold(filepath.Ext(configFile), ".toml") {
		return toml.Unmarshal
	}
	return yaml.Unmarshal
}

func LoadConfig(configFile string) (*Config, error) {
	// Load .env from the working directory without overriding the
	// existing environment
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		unmarshal := unmarshalFunc(configFile)
		// Decode the file twice: once onto the defaults, once for the
		// plugin sections
		if err := unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		var tempCfg tempConfig
		if err := unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		pluginConfig := make(map[string]map[string]map[string]any)
		if tempCfg.Database != nil {
			if tempCfg.Database.Blob != nil {
				pluginConfig["blob"] = pluginSection(
					"blob",
					tempCfg.Database.Blob,
					&globalConfig.BlobPlugin,
				)
			}
			if tempCfg.Database.Metadata != nil {
				pluginConfig["metadata"] = pluginSection(
					"metadata",
					tempCfg.Database.Metadata,
					&globalConfig.MetadataPlugin,
				)
			}
		}
		if len(pluginConfig) > 0 {
			err = plugin.ProcessConfig(pluginConfig)
			if err != nil {
				return nil, fmt.Errorf(
					"error processing plugin config: %w",
					err,
				)
			}
		}
	}
	// Process environment variables
	err := envconfig.Process(EnvPrefix, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Process plugin environment variables
	err = plugin.ProcessEnvVars(strings.ToUpper(EnvPrefix))
	if err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	if _, err := globalConfig.Logging.SlogLevel(); err != nil {
		return nil, err
	}
	switch globalConfig.Logging.Format {
	case "", "json", "text":
	default:
		return nil, fmt.Errorf(
			"invalid log format: %q (must be 'json' or 'text')",
			globalConfig.Logging.Format,
		)
	}
	if _, err := globalConfig.ShutdownTimeoutDuration(); err != nil {
		return nil, err
	}
	if _, err := globalConfig.BlockIntervalDuration(); err != nil {
		return nil, err
	}
	if globalConfig.MaxBlockTxs <= 0 {
		return nil, errors.New("maxBlockTxs must be positive")
	}
	if err := globalConfig.Ledger.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger parameters: %w", err)
	}
	return globalConfig, nil
}

// pluginSection converts a database.blob or database.metadata section into
// per-plugin option maps. A "plugin" key selects the plugin.
func pluginSection(
	pluginType string,
	section map[string]any,
	pluginName *string,
) map[string]map[string]any {
	if pluginVal, exists := section["plugin"]; exists {
		if name, ok := pluginVal.(string); ok {
			*pluginName = name
		}
	}
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = maps.Clone(val)
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				pluginType,
				k,
				v,
			)
		}
	}
	return ret
}

func GetConfig() *Config {
	return globalConfig
}
