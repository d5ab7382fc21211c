package reconcile

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name        string
		in          Inputs
		balance     int64
		storage     uint64
		consumption uint64
	}{
		{"zero", Inputs{}, 0, 0, 0},
		{"deposit only", Inputs{Stored: 5, StorageFee: 10, Rate: 2}, 50, 50, 0},
		{"after withdrawal", Inputs{Stored: 5, Consumed: 3, Rate: 2, StorageFee: 10}, 44, 50, 6},
		{"negative balance", Inputs{Stored: 5, Consumed: 5, Rate: 30, StorageFee: 1}, -145, 5, 150},
		{"free storage", Inputs{Stored: 100, Consumed: 40, Rate: 3}, -120, 0, 120},
		{"max positive", Inputs{Stored: math.MaxInt64, StorageFee: 1}, math.MaxInt64, math.MaxInt64, 0},
		{"min negative", Inputs{Consumed: 1 << 62, Rate: 2}, math.MinInt64, 0, 1 << 63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(tt.in, now)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Balance != tt.balance {
				t.Errorf("Balance: got %d, want %d", res.Balance, tt.balance)
			}
			if res.StorageCharge != tt.storage {
				t.Errorf("StorageCharge: got %d, want %d", res.StorageCharge, tt.storage)
			}
			if res.ConsumptionCharge != tt.consumption {
				t.Errorf("ConsumptionCharge: got %d, want %d", res.ConsumptionCharge, tt.consumption)
			}
			if !res.ReconciledAt.Equal(now) {
				t.Errorf("ReconciledAt: got %v, want %v", res.ReconciledAt, now)
			}
		})
	}
}

func TestRunOverflow(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
	}{
		{"storage product", Inputs{Stored: math.MaxUint64, StorageFee: 2}},
		{"consumption product", Inputs{Consumed: 1 << 33, Rate: 1 << 33}},
		{"positive balance past int64", Inputs{Stored: math.MaxInt64 + 1, StorageFee: 1}},
		{"negative balance past int64", Inputs{Consumed: math.MaxUint64, Rate: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Run(tt.in, time.Now()); !errors.Is(err, ErrOverflow) {
				t.Errorf("expected ErrOverflow, got %v", err)
			}
		})
	}
}

func TestBalanceIsPure(t *testing.T) {
	in := Inputs{Stored: 17, Consumed: 9, Rate: 4, StorageFee: 3}

	first, err := Balance(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := Balance(in)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("balance changed between calls: %d != %d", again, first)
		}
	}
}

func TestAccumulate(t *testing.T) {
	got, err := Accumulate(40, 2)
	if err != nil || got != 42 {
		t.Fatalf("Accumulate(40, 2) = %d, %v", got, err)
	}

	got, err = Accumulate(math.MaxUint64, 1)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got != math.MaxUint64 {
		t.Errorf("total should be returned unchanged on overflow, got %d", got)
	}
}
