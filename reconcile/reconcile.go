// Package reconcile computes a producer's settlement balance.
//
// The computation is pure: given the same cumulative totals, rate and storage
// fee it always yields the same balance. Only the reconciliation timestamp
// depends on the caller-supplied clock reading.
//
//	balance = stored*storageFee - consumed*rate
//
// Products are formed in 128 bits and the result must fit an int64; inputs
// that would wrap fail with ErrOverflow instead.
package reconcile

import (
	"errors"
	"math"
	"math/bits"
	"time"
)

// ErrOverflow is returned when a charge or the resulting balance cannot be
// represented without wrapping.
var ErrOverflow = errors.New("reconcile: arithmetic overflow")

// Inputs are the values a reconciliation is computed from.
type Inputs struct {
	Stored     uint64
	Consumed   uint64
	Rate       uint64
	StorageFee uint64
}

// Result is the outcome of a reconciliation.
type Result struct {
	StorageCharge     uint64    `json:"storage_charge"`
	ConsumptionCharge uint64    `json:"consumption_charge"`
	Balance           int64     `json:"balance"`
	ReconciledAt      time.Time `json:"reconciled_at"`
}

// Run reconciles in at time now.
func Run(in Inputs, now time.Time) (Result, error) {
	balance, storage, consumption, err := compute(in)
	if err != nil {
		return Result{}, err
	}
	return Result{
		StorageCharge:     storage,
		ConsumptionCharge: consumption,
		Balance:           balance,
		ReconciledAt:      now,
	}, nil
}

// Balance returns only the balance figure for in.
func Balance(in Inputs) (int64, error) {
	b, _, _, err := compute(in)
	return b, err
}

func compute(in Inputs) (balance int64, storage, consumption uint64, err error) {
	storage, err = mul(in.Stored, in.StorageFee)
	if err != nil {
		return 0, 0, 0, err
	}
	consumption, err = mul(in.Consumed, in.Rate)
	if err != nil {
		return 0, 0, 0, err
	}
	balance, err = diff(storage, consumption)
	if err != nil {
		return 0, 0, 0, err
	}
	return balance, storage, consumption, nil
}

func mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// diff returns a-b as a signed value.
func diff(a, b uint64) (int64, error) {
	if a >= b {
		d := a - b
		if d > math.MaxInt64 {
			return 0, ErrOverflow
		}
		return int64(d), nil
	}
	d := b - a
	switch {
	case d == 1<<63:
		return math.MinInt64, nil
	case d > 1<<63:
		return 0, ErrOverflow
	}
	return -int64(d), nil
}

// Accumulate adds amount to a cumulative counter, failing rather than wrapping.
func Accumulate(total, amount uint64) (uint64, error) {
	sum, carry := bits.Add64(total, amount, 0)
	if carry != 0 {
		return total, ErrOverflow
	}
	return sum, nil
}
