// Package config loads server and criteria configuration from a config
// file and CRITERIA_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Criteria CriteriaConfig `mapstructure:"criteria"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Models and Resources let deployments declare their schema in the
	// config file instead of code.
	Models    []ModelConfig    `mapstructure:"models"`
	Resources []ResourceConfig `mapstructure:"resources"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Listen          string `mapstructure:"listen"`
	DefaultPageSize int    `mapstructure:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size"`
}

// CriteriaConfig configures the compiler and planner.
type CriteriaConfig struct {
	// ExcludedColumns are removed from every model's searchable set.
	ExcludedColumns []string `mapstructure:"excluded_columns"`
	// TableExcludedColumns removes columns per table.
	TableExcludedColumns map[string][]string `mapstructure:"table_excluded_columns"`
	// EagerLoading toggles the eager-load planner. When disabled, no
	// relations are preloaded automatically.
	EagerLoading bool `mapstructure:"eager_loading"`
	// MaxEagerDepth bounds relation traversal when planning eager loads.
	MaxEagerDepth int `mapstructure:"max_eager_depth"`
	// Strict makes references to unknown columns and relations an error
	// instead of a silent no-op.
	Strict bool `mapstructure:"strict"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig configures the optional shared metadata cache backend.
type RedisConfig struct {
	URL string `mapstructure:"url"`
	// TTLSeconds expires shared cache entries; 0 keeps them forever.
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ModelConfig declares a model in the config file.
type ModelConfig struct {
	Name       string           `mapstructure:"name"`
	Table      string           `mapstructure:"table"`
	PrimaryKey string           `mapstructure:"primary_key"`
	Columns    []string         `mapstructure:"columns"`
	Relations  []RelationConfig `mapstructure:"relations"`
}

// RelationConfig declares a relation in the config file.
type RelationConfig struct {
	Name       string `mapstructure:"name"`
	Target     string `mapstructure:"target"`
	Kind       string `mapstructure:"kind"`
	ForeignKey string `mapstructure:"foreign_key"`
	LocalKey   string `mapstructure:"local_key"`
}

// ResourceConfig declares a response schema in the config file.
type ResourceConfig struct {
	Name   string   `mapstructure:"name"`
	Model  string   `mapstructure:"model"`
	Fields []string `mapstructure:"fields"`
}

// Load reads configuration from the given file (optional) and the
// environment. Environment variables use the CRITERIA_ prefix with
// underscores, e.g. CRITERIA_CRITERIA_MAX_EAGER_DEPTH=4.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api.listen", ":8080")
	v.SetDefault("api.default_page_size", 100)
	v.SetDefault("api.max_page_size", 1000)
	v.SetDefault("criteria.eager_loading", true)
	v.SetDefault("criteria.max_eager_depth", 4)
	v.SetDefault("criteria.strict", false)
	v.SetDefault("criteria.excluded_columns", []string{"password", "remember_token"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("redis.ttl_seconds", 0)

	v.SetEnvPrefix("CRITERIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
