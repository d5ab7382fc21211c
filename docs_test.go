package batterybank_test

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/store/memory"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and produce the documented figures.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		bank := batterybank.New(memory.New(), batterybank.WithLogger(slog.Default()))
		if err := bank.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer bank.Stop()

		fac, err := bank.CreateFacility(ctx, batterybank.OwnerGrant("operator"),
			&batterybank.Facility{Name: "north", StorageFee: 10})
		if err != nil {
			t.Fatal(err)
		}

		// Deposit 5 units at a consumption rate of 2.
		l, err := bank.Deposit(ctx, fac.ID, batterybank.ProducerGrant("solar-1"), 5, 2)
		if err != nil {
			t.Fatal(err)
		}
		if l.Balance != 50 {
			t.Errorf("balance after deposit: got %d, want 50", l.Balance)
		}

		// Withdrawals need the producer and the facility owner.
		l, err = bank.Withdraw(ctx, fac.ID,
			batterybank.ProducerGrant("solar-1"), batterybank.OwnerGrant("operator"), 3)
		if err != nil {
			t.Fatal(err)
		}
		if l.Balance != 44 {
			t.Errorf("balance after withdrawal: got %d, want 44", l.Balance)
		}
		log.Printf("balance: %d\n", l.Balance)
	})

	t.Run("ErrorHelpers", func(t *testing.T) {
		ctx := context.Background()
		bank := batterybank.New(memory.New())

		_, err := bank.Deposit(ctx, id.NewFacilityID(), batterybank.ProducerGrant("solar-1"), 5, 2)
		if !batterybank.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}

		fac, err := bank.CreateFacility(ctx, batterybank.OwnerGrant("operator"), &batterybank.Facility{StorageFee: 10})
		if err != nil {
			t.Fatal(err)
		}
		_, err = bank.Deposit(ctx, fac.ID, batterybank.ProducerGrant("solar-1"), 0, 2)
		if !batterybank.IsRejected(err) {
			t.Errorf("expected rejection, got %v", err)
		}
		if batterybank.IsRetryable(err) || !errors.Is(err, batterybank.ErrInvalidAmount) {
			t.Errorf("zero amount: got %v", err)
		}
	})

	t.Run("TypeIDExamples", func(t *testing.T) {
		for _, s := range []string{
			"fac_01h2xcejqtf2nbrexx3vqjhp41",
			"pled_01h455vb4pex5vsknk084sn02q",
		} {
			if _, err := id.Parse(s); err != nil {
				t.Errorf("parse %s: %v", s, err)
			}
		}
	})
}
