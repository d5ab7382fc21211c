package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/xraph/batterybank"
	audithook "github.com/xraph/batterybank/audit_hook"
	"github.com/xraph/batterybank/store"
	"github.com/xraph/batterybank/store/memory"
	redisstore "github.com/xraph/batterybank/store/redis"
)

type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer

	cfg     *Config
	logger  *slog.Logger
	bank    *batterybank.Bank
	closers []func() error
}

func newApp(out, errOut io.Writer) *app {
	return &app{v: viper.New(), out: out, errOut: errOut}
}

// setup resolves configuration and starts the bank.
func (a *app) setup(ctx context.Context) error {
	cfg, err := loadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Logger, a.errOut)

	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	opts := []batterybank.Option{
		batterybank.WithLogger(a.logger),
		batterybank.WithMaxTransactions(cfg.Bank.MaxTransactions),
	}
	if cfg.Audit.AMQPURL != "" {
		rec, err := a.openAudit()
		if err != nil {
			_ = s.Close()
			return err
		}
		opts = append(opts, batterybank.WithPlugin(audithook.New(rec, audithook.WithLogger(a.logger))))
	}

	b := batterybank.New(s, opts...)
	if err := b.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}
	a.bank = b
	return nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.cfg.Store.Driver != driverRedis {
		return memory.New(), nil
	}

	opt, err := goredis.ParseURL(a.cfg.Store.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	var opts []redisstore.Option
	if a.cfg.Store.KeyPrefix != "" {
		opts = append(opts, redisstore.WithKeyPrefix(a.cfg.Store.KeyPrefix))
	}
	s := redisstore.New(goredis.NewClient(opt), opts...)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.logger.Debug("using redis store", "addr", opt.Addr)
	return s, nil
}

func (a *app) openAudit() (audithook.Recorder, error) {
	conn, err := amqp.Dial(a.cfg.Audit.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(a.cfg.Audit.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	a.closers = append(a.closers, ch.Close, conn.Close)
	return audithook.NewAMQPRecorder(ch, a.cfg.Audit.Exchange), nil
}

// close stops the bank and then releases the audit connection.
func (a *app) close() {
	if a.bank != nil {
		if err := a.bank.Stop(); err != nil {
			a.logger.Warn("stop bank", "error", err)
		}
		a.bank = nil
	}
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
