package producer

import (
	"time"

	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/reconcile"
	"github.com/xraph/batterybank/types"
)

// Kind tags a transaction as a deposit or a withdrawal.
type Kind string

const (
	KindStore   Kind = "store"
	KindConsume Kind = "consume"
)

// Transaction is one accepted store or consume operation.
type Transaction struct {
	Kind      Kind      `json:"kind"`
	Amount    uint64    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger is the per-(facility, producer) account.
//
// StoredAmount and ConsumedAmount are lifetime totals and only ever grow.
// Balance is the figure produced by the last reconciliation and is never left
// stale by an accepted operation.
type Ledger struct {
	types.Entity
	ID             id.LedgerID   `json:"id"`
	FacilityID     id.FacilityID `json:"facility_id"`
	Producer       string        `json:"producer"`
	StoredAmount   uint64        `json:"stored_amount"`
	ConsumedAmount uint64        `json:"consumed_amount"`
	Rate           uint64        `json:"rate"`
	Balance        int64         `json:"balance"`
	LastReconciled time.Time     `json:"last_reconciled"`
	Capacity       int           `json:"capacity"`
	Transactions   []Transaction `json:"transactions"`
	Version        int64         `json:"version"`
}

// NewLedger returns an empty ledger whose history holds at most capacity
// transactions.
func NewLedger(facilityID id.FacilityID, producer string, capacity int) *Ledger {
	return &Ledger{
		Entity:       types.NewEntity(),
		ID:           id.NewLedgerID(),
		FacilityID:   facilityID,
		Producer:     producer,
		Capacity:     capacity,
		Transactions: make([]Transaction, 0, capacity),
	}
}

// Store records a deposit of amount and replaces the rate applied to all
// consumption, past and future.
func (l *Ledger) Store(amount, rate uint64, at time.Time) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if l.Full() {
		return ErrCapacityExceeded
	}
	stored, err := reconcile.Accumulate(l.StoredAmount, amount)
	if err != nil {
		return err
	}

	l.StoredAmount = stored
	l.Rate = rate
	l.Transactions = append(l.Transactions, Transaction{Kind: KindStore, Amount: amount, Timestamp: at})
	return nil
}

// Consume records a withdrawal of amount. The guard compares against the
// lifetime stored total, not stored minus consumed.
func (l *Ledger) Consume(amount uint64, at time.Time) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > l.StoredAmount {
		return ErrInsufficientEnergy
	}
	if l.Full() {
		return ErrCapacityExceeded
	}
	consumed, err := reconcile.Accumulate(l.ConsumedAmount, amount)
	if err != nil {
		return err
	}

	l.ConsumedAmount = consumed
	l.Transactions = append(l.Transactions, Transaction{Kind: KindConsume, Amount: amount, Timestamp: at})
	return nil
}

// Inputs returns the reconciliation inputs for this ledger under storageFee.
func (l *Ledger) Inputs(storageFee uint64) reconcile.Inputs {
	return reconcile.Inputs{
		Stored:     l.StoredAmount,
		Consumed:   l.ConsumedAmount,
		Rate:       l.Rate,
		StorageFee: storageFee,
	}
}

// Apply stores a reconciliation result on the ledger.
func (l *Ledger) Apply(res reconcile.Result) {
	l.Balance = res.Balance
	l.LastReconciled = res.ReconciledAt
}

// Clone returns a deep copy of l.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Transactions = make([]Transaction, len(l.Transactions), max(l.Capacity, len(l.Transactions)))
	copy(c.Transactions, l.Transactions)
	return &c
}
