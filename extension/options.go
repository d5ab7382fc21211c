package extension

import (
	"time"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/plugin"
	"github.com/xraph/batterybank/store"
)

// Option configures the battery bank Forge extension.
type Option func(*Extension)

// WithStore sets the store for the bank.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithBankOption passes a batterybank.Option through to the underlying bank.
func WithBankOption(opt batterybank.Option) Option {
	return func(e *Extension) {
		e.bankOpts = append(e.bankOpts, opt)
	}
}

// WithPlugin registers a bank plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.bankOpts = append(e.bankOpts, batterybank.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMaxTransactions sets the per-ledger transaction capacity.
func WithMaxTransactions(n int) Option {
	return func(e *Extension) { e.config.MaxTransactions = n }
}

// WithPluginTimeout bounds each plugin hook invocation.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithRedisURL selects the Redis store when no store is set.
func WithRedisURL(url string) Option {
	return func(e *Extension) { e.config.RedisURL = url }
}
