package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/producer"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out, io.Discard)
	return out.String(), err
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo")
	if err != nil {
		t.Fatalf("demo: %v", err)
	}
	for _, want := range []string{
		"balance=50",
		"stored=5 consumed=3 balance=44",
		"refused",
		"history  2 transactions",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCommandsOnRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	base := []string{"--store", "redis", "--redis-url", "redis://" + mr.Addr()}
	cmd := func(args ...string) (string, error) {
		return execute(t, append(append([]string{}, base...), args...)...)
	}

	out, err := cmd("facility", "create", "--owner", "operator", "--fee", "10")
	if err != nil {
		t.Fatalf("facility create: %v", err)
	}
	var fac facility.Facility
	if err := json.Unmarshal([]byte(out), &fac); err != nil {
		t.Fatalf("decode facility: %v\n%s", err, out)
	}
	fid := fac.ID.String()

	if _, err := cmd("deposit", fid, "--producer", "solar-1", "--amount", "5", "--rate", "2"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := cmd("withdraw", fid, "--producer", "solar-1", "--owner", "operator", "--amount", "3"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	_, err = cmd("withdraw", fid, "--producer", "solar-1", "--owner", "operator", "--amount", "6")
	if !errors.Is(err, batterybank.ErrInsufficientEnergy) {
		t.Errorf("expected ErrInsufficientEnergy, got %v", err)
	}
	_, err = cmd("withdraw", fid, "--producer", "solar-1", "--owner", "mallory", "--amount", "1")
	if !errors.Is(err, batterybank.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	out, err = cmd("ledger", "show", fid, "--producer", "solar-1")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	var l producer.Ledger
	if err := json.Unmarshal([]byte(out), &l); err != nil {
		t.Fatalf("decode ledger: %v\n%s", err, out)
	}
	if l.StoredAmount != 5 || l.ConsumedAmount != 3 || l.Balance != 44 || len(l.Transactions) != 2 {
		t.Errorf("unexpected ledger: %+v", l)
	}

	out, err = cmd("facility", "list", "--owner", "operator")
	if err != nil {
		t.Fatalf("facility list: %v", err)
	}
	var fs []facility.Facility
	if err := json.Unmarshal([]byte(out), &fs); err != nil || len(fs) != 1 {
		t.Errorf("facility list: %v %s", err, out)
	}

	out, err = cmd("facility", "list", "--offset=-1")
	if err != nil {
		t.Fatalf("facility list with negative offset: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &fs); err != nil || len(fs) != 1 {
		t.Errorf("facility list with negative offset: %v %s", err, out)
	}
	out, err = cmd("ledger", "list", fid, "--limit=-2", "--offset=-1")
	if err != nil {
		t.Fatalf("ledger list with negative paging: %v", err)
	}
	var ls []producer.Ledger
	if err := json.Unmarshal([]byte(out), &ls); err != nil || len(ls) != 1 {
		t.Errorf("ledger list with negative paging: %v %s", err, out)
	}
}

func TestBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown driver", []string{"--store", "cassandra", "demo"}},
		{"malformed facility id", []string{"facility", "show", "not-an-id"}},
		{"wrong id prefix", []string{"facility", "show", "pled_01h455vb4pex5vsknk084sn02q"}},
		{"missing facility", []string{"deposit", "fac_01h455vb4pex5vsknk084sn02q", "--producer", "p", "--amount", "1"}},
		{"unreachable redis", []string{"--store", "redis", "--redis-url", "redis://127.0.0.1:1", "demo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG").String() != "DEBUG" || parseLevel("bogus").String() != "INFO" {
		t.Error("unexpected level mapping")
	}
}
