package extension

import "time"

// Config holds the battery bank extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.batterybank" or "batterybank" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MaxTransactions is the per-ledger transaction capacity (default: 50).
	MaxTransactions int `json:"max_transactions" mapstructure:"max_transactions" yaml:"max_transactions"`

	// PluginTimeout bounds each plugin hook invocation (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RedisURL, when set and no store was supplied programmatically, selects
	// the Redis store. The URL follows redis.ParseURL.
	RedisURL string `json:"redis_url" mapstructure:"redis_url" yaml:"redis_url"`

	// RedisKeyPrefix overrides the Redis store's key prefix.
	RedisKeyPrefix string `json:"redis_key_prefix" mapstructure:"redis_key_prefix" yaml:"redis_key_prefix"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTransactions: 50,
		PluginTimeout:   5 * time.Second,
	}
}
