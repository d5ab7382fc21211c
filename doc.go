// Package batterybank provides an energy-storage accounting ledger for Go
// applications.
//
// Producers deposit ("store") and withdraw ("consume") units of energy against
// a shared battery bank facility. The facility charges a fixed storage fee per
// stored unit. Every accepted operation is appended to the producer's bounded
// transaction history and immediately reconciled, so the settlement balance
// is never stale:
//
//	balance = stored*storage_fee - consumed*rate
//
// BatteryBank is a library, not a service. Identity, transport and payment
// are left to the embedding application; verified identities arrive as
// authz.Grant values on each call.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/batterybank"
//	    "github.com/xraph/batterybank/store/memory"
//	)
//
//	bank := batterybank.New(memory.New())
//	if err := bank.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer bank.Stop()
//
//	fac, err := bank.CreateFacility(ctx, batterybank.OwnerGrant("operator"),
//	    &batterybank.Facility{Name: "north", StorageFee: 10})
//
//	// Deposit 5 units at a consumption rate of 2.
//	l, err := bank.Deposit(ctx, fac.ID, batterybank.ProducerGrant("solar-1"), 5, 2)
//
//	// Withdrawals need the producer and the facility owner.
//	l, err = bank.Withdraw(ctx, fac.ID,
//	    batterybank.ProducerGrant("solar-1"), batterybank.OwnerGrant("operator"), 3)
//	fmt.Println(l.Balance) // 44
//
// # Accounting rules
//
// StoredAmount and ConsumedAmount are lifetime totals. A withdrawal is allowed
// while its amount does not exceed the lifetime stored total. Each deposit
// replaces the ledger's rate, and the new rate applies to all consumption
// recorded so far. Arithmetic that would overflow fails with ErrOverflow and
// leaves the ledger untouched.
//
// # Concurrency
//
// Bank holds no locks. Stores persist ledgers with an optimistic version check
// and return ErrConflict when another writer got there first; callers may
// retry, see IsRetryable.
//
// # TypeID
//
// Facilities and ledgers are identified by TypeIDs:
//
//	fac_01h2xcejqtf2nbrexx3vqjhp41   // Facility ID
//	pled_01h455vb4pex5vsknk084sn02q  // Producer ledger ID
package batterybank
