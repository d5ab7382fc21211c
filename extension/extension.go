// Package extension provides the Forge extension adapter for the battery bank.
//
// It implements the forge.Extension interface to integrate the bank into a
// Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.batterybank" or
// "batterybank" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/store"
	"github.com/xraph/batterybank/store/memory"
	redisstore "github.com/xraph/batterybank/store/redis"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "batterybank"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Shared battery storage accounting ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the battery bank as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	bank     *batterybank.Bank
	store    store.Store
	bankOpts []batterybank.Option
}

// New creates a new battery bank Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bank returns the underlying Bank instance.
// This is nil until Register is called.
func (e *Extension) Bank() *batterybank.Bank { return e.bank }

// Register implements [forge.Extension]. It loads configuration,
// initializes the bank, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := e.newStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	e.bank = batterybank.New(e.store, e.buildBankOpts()...)

	return vessel.Provide(fapp.Container(), func() (*batterybank.Bank, error) {
		return e.bank, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.bank == nil {
		return errors.New("batterybank: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.bank.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.bank != nil {
		if err := e.bank.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("batterybank: store not initialized")
	}
	return e.store.Ping(ctx)
}

// newStore builds the store named by the configuration. The memory store
// is used when no Redis URL is configured.
func (e *Extension) newStore() (store.Store, error) {
	if e.config.RedisURL == "" {
		return memory.New(), nil
	}
	opt, err := goredis.ParseURL(e.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("batterybank: parse redis url: %w", err)
	}
	var opts []redisstore.Option
	if e.config.RedisKeyPrefix != "" {
		opts = append(opts, redisstore.WithKeyPrefix(e.config.RedisKeyPrefix))
	}
	return redisstore.New(goredis.NewClient(opt), opts...), nil
}

// buildBankOpts constructs batterybank.Option values from the resolved config.
func (e *Extension) buildBankOpts() []batterybank.Option {
	opts := make([]batterybank.Option, 0, len(e.bankOpts)+2)

	if e.config.MaxTransactions > 0 {
		opts = append(opts, batterybank.WithMaxTransactions(e.config.MaxTransactions))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, batterybank.WithPluginTimeout(e.config.PluginTimeout))
	}

	// Pass-through options win over config.
	opts = append(opts, e.bankOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("batterybank: configuration is required but not found in config files; " +
				"ensure 'extensions.batterybank' or 'batterybank' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("batterybank: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("max_transactions", e.config.MaxTransactions),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("redis", e.config.RedisURL != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.batterybank", "batterybank"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("batterybank: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("batterybank: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxTransactions == 0 {
		cfg.MaxTransactions = defaults.MaxTransactions
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.RedisURL == "" {
		yamlConfig.RedisURL = programmaticConfig.RedisURL
	}
	if yamlConfig.RedisKeyPrefix == "" {
		yamlConfig.RedisKeyPrefix = programmaticConfig.RedisKeyPrefix
	}
	if yamlConfig.MaxTransactions == 0 {
		yamlConfig.MaxTransactions = programmaticConfig.MaxTransactions
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	return mergeWithDefaults(yamlConfig)
}
