package extension

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/xraph/batterybank/store/memory"
	redisstore "github.com/xraph/batterybank/store/redis"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{MaxTransactions: 8})
	if got.MaxTransactions != 8 {
		t.Errorf("MaxTransactions: got %d, want 8", got.MaxTransactions)
	}
	if got.PluginTimeout != DefaultConfig().PluginTimeout {
		t.Errorf("PluginTimeout: got %v, want default", got.PluginTimeout)
	}
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{MaxTransactions: 20}
	prog := Config{
		MaxTransactions: 99,
		PluginTimeout:   time.Second,
		DisableMigrate:  true,
		RedisURL:        "redis://localhost:6379/0",
	}

	got := mergeConfigurations(file, prog)
	if got.MaxTransactions != 20 {
		t.Errorf("file value should win: got %d", got.MaxTransactions)
	}
	if got.PluginTimeout != time.Second {
		t.Errorf("programmatic value should fill gap: got %v", got.PluginTimeout)
	}
	if !got.DisableMigrate {
		t.Error("programmatic DisableMigrate lost")
	}
	if got.RedisURL != prog.RedisURL {
		t.Errorf("RedisURL: got %q", got.RedisURL)
	}
}

func TestNewStore(t *testing.T) {
	e := New()
	s, err := e.newStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", s)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)
	e = New(WithConfig(Config{RedisURL: "redis://" + mr.Addr(), RedisKeyPrefix: "test:"}))
	s, err = e.newStore()
	if err != nil {
		t.Fatal(err)
	}
	rs, ok := s.(*redisstore.Store)
	if !ok {
		t.Fatalf("expected redis store, got %T", s)
	}
	defer rs.Close()
	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	e = New(WithRedisURL("://bad"))
	if _, err := e.newStore(); err == nil {
		t.Error("expected error for malformed redis url")
	}
}

func TestBuildBankOpts(t *testing.T) {
	e := New(WithMaxTransactions(4), WithPluginTimeout(time.Second))
	if got := len(e.buildBankOpts()); got != 2 {
		t.Errorf("expected 2 options, got %d", got)
	}
	e = New(WithStore(memory.New()))
	if got := len(e.buildBankOpts()); got != 0 {
		t.Errorf("expected no options for zero config, got %d", got)
	}
}
