package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved bankctl configuration.
type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Bank   BankConfig   `mapstructure:"bank"`
	Logger LoggerConfig `mapstructure:"logger"`
	Audit  AuditConfig  `mapstructure:"audit"`
}

// StoreConfig selects and addresses the persistence backend.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// BankConfig tunes the engine.
type BankConfig struct {
	MaxTransactions int `mapstructure:"max_transactions"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuditConfig enables publishing audit events to RabbitMQ.
type AuditConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

const (
	driverMemory = "memory"
	driverRedis  = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", driverMemory)
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("bank.max_transactions", 50)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("audit.exchange", "batterybank.audit")
}

// loadConfig reads an optional config file, then BANKCTL_* environment
// variables, then bound flags. A .env file in the working directory is
// loaded into the environment first.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	_ = godotenv.Load()

	setDefaults(v)
	v.SetEnvPrefix("BANKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("bankctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	switch cfg.Store.Driver {
	case driverMemory, driverRedis:
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return &cfg, nil
}
