package batterybank_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/authz"
	"github.com/xraph/batterybank/clock"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/plugin"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/reconcile"
	"github.com/xraph/batterybank/store/memory"
)

var (
	start    = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	operator = authz.Owner("operator")
	solar    = authz.Producer("solar-1")
)

type fixture struct {
	bank  *batterybank.Bank
	store *memory.Store
	clock *clock.Fake
	fac   *facility.Facility
}

func newFixture(t *testing.T, fee uint64, opts ...batterybank.Option) *fixture {
	t.Helper()

	s := memory.New()
	c := clock.NewFake(start)
	opts = append([]batterybank.Option{
		batterybank.WithClock(c),
		batterybank.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	b := batterybank.New(s, opts...)

	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Stop() })

	fac, err := b.CreateFacility(ctx, operator, &facility.Facility{Name: "north", StorageFee: fee})
	if err != nil {
		t.Fatalf("CreateFacility: %v", err)
	}
	return &fixture{bank: b, store: s, clock: c, fac: fac}
}

func (f *fixture) ledger(t *testing.T, p authz.Grant) *producer.Ledger {
	t.Helper()
	l, err := f.bank.GetLedger(context.Background(), f.fac.ID, p.Subject)
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	return l
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	l, err := f.bank.Deposit(ctx, f.fac.ID, solar, 5, 2)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if l.StoredAmount != 5 || l.ConsumedAmount != 0 || l.Rate != 2 || l.Balance != 50 {
		t.Fatalf("after deposit: %+v", l)
	}

	f.clock.Advance(time.Minute)
	l, err = f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 3)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if l.StoredAmount != 5 || l.ConsumedAmount != 3 || l.Balance != 44 {
		t.Fatalf("after withdrawal: %+v", l)
	}

	before := f.ledger(t, solar)
	_, err = f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 6)
	if !errors.Is(err, batterybank.ErrInsufficientEnergy) {
		t.Fatalf("expected ErrInsufficientEnergy, got %v", err)
	}
	if after := f.ledger(t, solar); !reflect.DeepEqual(after, before) {
		t.Errorf("rejected withdrawal changed the ledger:\nbefore %+v\nafter  %+v", before, after)
	}

	txs, err := f.bank.Transactions(ctx, f.fac.ID, solar.Subject)
	if err != nil {
		t.Fatal(err)
	}
	want := []producer.Transaction{
		{Kind: producer.KindStore, Amount: 5, Timestamp: start},
		{Kind: producer.KindConsume, Amount: 3, Timestamp: start.Add(time.Minute)},
	}
	if !reflect.DeepEqual(txs, want) {
		t.Errorf("transactions:\ngot  %+v\nwant %+v", txs, want)
	}
}

func TestCreateFacility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	if f.fac.ID.Prefix() != id.PrefixFacility {
		t.Errorf("generated id prefix: %q", f.fac.ID.Prefix())
	}
	if f.fac.Owner != operator.Subject {
		t.Errorf("Owner: got %q", f.fac.Owner)
	}

	_, err := f.bank.CreateFacility(ctx, authz.Owner("someone-else"), &facility.Facility{ID: f.fac.ID, StorageFee: 1})
	if !errors.Is(err, batterybank.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, err := f.bank.GetFacility(ctx, f.fac.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != operator.Subject || got.StorageFee != 10 {
		t.Errorf("facility was overwritten: %+v", got)
	}

	tests := []struct {
		name  string
		grant authz.Grant
		fac   *facility.Facility
		err   error
	}{
		{"producer grant", solar, &facility.Facility{}, batterybank.ErrUnauthorized},
		{"nil facility", operator, nil, batterybank.ErrInvalidInput},
		{"wrong id prefix", operator, &facility.Facility{ID: id.NewLedgerID()}, batterybank.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.bank.CreateFacility(ctx, tt.grant, tt.fac); !errors.Is(err, tt.err) {
				t.Errorf("got %v, want %v", err, tt.err)
			}
		})
	}

	list, err := f.bank.ListFacilities(ctx, facility.ListOpts{Owner: operator.Subject})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("ListFacilities: got %d, want 1", len(list))
	}
}

func TestDepositRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	tests := []struct {
		name     string
		facility id.FacilityID
		grant    authz.Grant
		amount   uint64
		err      error
	}{
		{"zero amount", f.fac.ID, solar, 0, batterybank.ErrInvalidAmount},
		{"owner grant", f.fac.ID, operator, 1, batterybank.ErrUnauthorized},
		{"unknown facility", id.NewFacilityID(), solar, 1, batterybank.ErrFacilityNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.bank.Deposit(ctx, tt.facility, tt.grant, tt.amount, 1); !errors.Is(err, tt.err) {
				t.Fatalf("got %v, want %v", err, tt.err)
			}
			if _, err := f.bank.GetLedger(ctx, f.fac.ID, tt.grant.Subject); !errors.Is(err, batterybank.ErrLedgerNotFound) {
				t.Errorf("rejected first deposit created a ledger: %v", err)
			}
		})
	}
}

func TestWithdrawAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, 5, 2); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		producer authz.Grant
		owner    authz.Grant
	}{
		{"foreign owner", solar, authz.Owner("mallory")},
		{"missing owner", solar, authz.Grant{}},
		{"producer as owner", solar, authz.Producer("operator")},
		{"owner as producer", operator, operator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.ledger(t, solar)
			_, err := f.bank.Withdraw(ctx, f.fac.ID, tt.producer, tt.owner, 1)
			if !errors.Is(err, batterybank.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
			if !batterybank.IsRejected(err) {
				t.Error("IsRejected should hold for authorization failures")
			}
			if after := f.ledger(t, solar); !reflect.DeepEqual(after, before) {
				t.Error("rejected withdrawal changed the ledger")
			}
		})
	}
}

func TestWithdrawWithoutLedger(t *testing.T) {
	f := newFixture(t, 10)

	_, err := f.bank.Withdraw(context.Background(), f.fac.ID, solar, operator, 1)
	if !errors.Is(err, batterybank.ErrInsufficientEnergy) {
		t.Errorf("expected ErrInsufficientEnergy, got %v", err)
	}
	if !errors.Is(err, batterybank.ErrLedgerNotFound) {
		t.Errorf("expected ErrLedgerNotFound, got %v", err)
	}
}

func TestWithdrawGuardUsesLifetimeStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, 5, 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 5); err != nil {
			t.Fatalf("withdrawal %d: %v", i, err)
		}
	}

	l := f.ledger(t, solar)
	if l.ConsumedAmount != 15 || l.Balance != 5-15 {
		t.Errorf("got consumed %d balance %d", l.ConsumedAmount, l.Balance)
	}
}

func TestRateOverwriteIsRetroactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	_, _ = f.bank.Deposit(ctx, f.fac.ID, solar, 5, 2)
	_, _ = f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 3)
	l, err := f.bank.Deposit(ctx, f.fac.ID, solar, 1, 7)
	if err != nil {
		t.Fatal(err)
	}

	if l.Rate != 7 {
		t.Errorf("Rate: got %d, want 7", l.Rate)
	}
	if want := int64(6*10 - 3*7); l.Balance != want {
		t.Errorf("Balance: got %d, want %d", l.Balance, want)
	}
}

func TestMonotonicity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	steps := []struct {
		deposit bool
		amount  uint64
		tick    time.Duration
	}{
		{true, 10, time.Second},
		{false, 4, time.Second},
		{true, 2, -time.Hour},
		{false, 9, time.Minute},
		{true, 1, -time.Second},
	}

	prev := &producer.Ledger{}
	for i, st := range steps {
		f.clock.Advance(st.tick)
		var err error
		if st.deposit {
			_, err = f.bank.Deposit(ctx, f.fac.ID, solar, st.amount, uint64(i+1))
		} else {
			_, err = f.bank.Withdraw(ctx, f.fac.ID, solar, operator, st.amount)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}

		l := f.ledger(t, solar)
		if l.StoredAmount < prev.StoredAmount || l.ConsumedAmount < prev.ConsumedAmount {
			t.Errorf("step %d: totals decreased", i)
		}
		if l.LastReconciled.Before(prev.LastReconciled) {
			t.Errorf("step %d: LastReconciled went back from %v to %v", i, prev.LastReconciled, l.LastReconciled)
		}
		want, err := reconcile.Balance(l.Inputs(f.fac.StorageFee))
		if err != nil {
			t.Fatal(err)
		}
		if l.Balance != want {
			t.Errorf("step %d: stale balance %d, want %d", i, l.Balance, want)
		}
		prev = l
	}

	l := f.ledger(t, solar)
	stored, consumed := l.Totals()
	if stored != l.StoredAmount || consumed != l.ConsumedAmount || l.Len() != len(steps) {
		t.Errorf("history does not match counters: %+v", l.Transactions)
	}
	for i := 1; i < l.Len(); i++ {
		if l.Transactions[i].Timestamp.Before(l.Transactions[i-1].Timestamp) {
			t.Errorf("transaction %d timestamp went backwards", i)
		}
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	_, _ = f.bank.Deposit(ctx, f.fac.ID, solar, 5, 2)
	_, _ = f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 3)

	f.clock.Advance(time.Hour)
	first, err := f.bank.Reconcile(ctx, f.fac.ID, solar)
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Hour)
	second, err := f.bank.Reconcile(ctx, f.fac.ID, solar)
	if err != nil {
		t.Fatal(err)
	}

	if first.Balance != 44 || second.Balance != 44 {
		t.Errorf("balances: %d, %d", first.Balance, second.Balance)
	}
	if !second.LastReconciled.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("LastReconciled: got %v", second.LastReconciled)
	}
	if second.Len() != 2 {
		t.Errorf("reconcile appended to the history: %d entries", second.Len())
	}

	if _, err := f.bank.Reconcile(ctx, f.fac.ID, authz.Producer("nobody")); !errors.Is(err, batterybank.ErrLedgerNotFound) {
		t.Errorf("expected ErrLedgerNotFound, got %v", err)
	}
}

func TestCapacityBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, batterybank.WithMaxTransactions(3))

	for i := 0; i < 3; i++ {
		if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, 1, 1); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	before := f.ledger(t, solar)
	if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, 1, 1); !errors.Is(err, batterybank.ErrCapacityExceeded) {
		t.Errorf("deposit: expected ErrCapacityExceeded, got %v", err)
	}
	if _, err := f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 1); !errors.Is(err, batterybank.ErrCapacityExceeded) {
		t.Errorf("withdraw: expected ErrCapacityExceeded, got %v", err)
	}
	if after := f.ledger(t, solar); !reflect.DeepEqual(after, before) {
		t.Error("rejected operations changed the ledger")
	}
}

func TestDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)

	for i := 0; i < batterybank.DefaultMaxTransactions; i++ {
		if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, 1, 1); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}
	if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, 1, 1); !errors.Is(err, batterybank.ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded after %d deposits, got %v", batterybank.DefaultMaxTransactions, err)
	}
}

func TestOverflowLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, math.MaxUint64/2+1, 1); !errors.Is(err, batterybank.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if _, err := f.bank.GetLedger(ctx, f.fac.ID, solar.Subject); !errors.Is(err, batterybank.ErrLedgerNotFound) {
		t.Errorf("overflowing first deposit created a ledger: %v", err)
	}

	if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, 5, 1); err != nil {
		t.Fatal(err)
	}
	before := f.ledger(t, solar)
	if _, err := f.bank.Deposit(ctx, f.fac.ID, solar, math.MaxUint64, 1); !errors.Is(err, batterybank.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if after := f.ledger(t, solar); !reflect.DeepEqual(after, before) {
		t.Error("overflowing deposit changed the ledger")
	}
}

func TestProducersAreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	wind := authz.Producer("wind-1")

	_, _ = f.bank.Deposit(ctx, f.fac.ID, solar, 5, 2)
	_, _ = f.bank.Deposit(ctx, f.fac.ID, wind, 1, 100)
	_, _ = f.bank.Withdraw(ctx, f.fac.ID, wind, operator, 1)

	if l := f.ledger(t, solar); l.Balance != 50 || l.Len() != 1 {
		t.Errorf("solar ledger affected by wind: %+v", l)
	}
	if l := f.ledger(t, wind); l.Balance != 10-100 {
		t.Errorf("wind balance: got %d", l.Balance)
	}

	ledgers, err := f.bank.ListLedgers(ctx, f.fac.ID, producer.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ledgers) != 2 {
		t.Errorf("ListLedgers: got %d, want 2", len(ledgers))
	}
}

// racingStore lets another writer commit between the engine's read and write.
type racingStore struct {
	*memory.Store
	once  sync.Once
	write func()
}

func (s *racingStore) UpdateLedger(ctx context.Context, l *producer.Ledger) error {
	s.once.Do(s.write)
	return s.Store.UpdateLedger(ctx, l)
}

func TestConcurrentWriteConflicts(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	other := batterybank.New(mem, batterybank.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	fac, err := other.CreateFacility(ctx, operator, &facility.Facility{StorageFee: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Deposit(ctx, fac.ID, solar, 5, 2); err != nil {
		t.Fatal(err)
	}

	rs := &racingStore{Store: mem}
	rs.write = func() {
		if _, err := other.Deposit(ctx, fac.ID, solar, 1, 2); err != nil {
			t.Errorf("racing deposit: %v", err)
		}
	}
	b := batterybank.New(rs, batterybank.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err = b.Withdraw(ctx, fac.ID, solar, operator, 3)
	if !errors.Is(err, batterybank.ErrConflict) || !batterybank.IsRetryable(err) {
		t.Fatalf("expected retryable ErrConflict, got %v", err)
	}

	l, err := b.GetLedger(ctx, fac.ID, solar.Subject)
	if err != nil {
		t.Fatal(err)
	}
	if l.StoredAmount != 6 || l.ConsumedAmount != 0 || l.Version != 2 {
		t.Errorf("losing write leaked into the store: %+v", l)
	}

	if _, err := b.Withdraw(ctx, fac.ID, solar, operator, 3); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []string
	rej    []plugin.Rejection
}

func (e *eventLog) Name() string { return "event-log" }

func (e *eventLog) add(ev string) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventLog) OnFacilityCreated(context.Context, *facility.Facility) error {
	e.add("facility")
	return nil
}

func (e *eventLog) OnEnergyStored(context.Context, *producer.Ledger, uint64, uint64) error {
	e.add("stored")
	return nil
}

func (e *eventLog) OnEnergyConsumed(context.Context, *producer.Ledger, uint64) error {
	e.add("consumed")
	return nil
}

func (e *eventLog) OnLedgerReconciled(context.Context, *producer.Ledger, reconcile.Result) error {
	e.add("reconciled")
	return nil
}

func (e *eventLog) OnOperationRejected(_ context.Context, r plugin.Rejection) error {
	e.mu.Lock()
	e.rej = append(e.rej, r)
	e.mu.Unlock()
	e.add("rejected")
	return nil
}

func TestPluginEvents(t *testing.T) {
	ctx := context.Background()
	log := &eventLog{}
	f := newFixture(t, 10, batterybank.WithPlugin(log))

	_, _ = f.bank.Deposit(ctx, f.fac.ID, solar, 5, 2)
	_, _ = f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 3)
	_, _ = f.bank.Withdraw(ctx, f.fac.ID, solar, operator, 60)

	want := []string{"facility", "stored", "reconciled", "consumed", "reconciled", "rejected"}
	if !reflect.DeepEqual(log.events, want) {
		t.Errorf("events:\ngot  %v\nwant %v", log.events, want)
	}
	if len(log.rej) != 1 {
		t.Fatalf("rejections: %+v", log.rej)
	}
	r := log.rej[0]
	if r.Operation != batterybank.OpWithdraw || r.Amount != 60 || r.Subject != solar.Subject || r.FacilityID != f.fac.ID.String() {
		t.Errorf("rejection: %+v", r)
	}
	if !errors.Is(r.Err, batterybank.ErrInsufficientEnergy) {
		t.Errorf("rejection error: %v", r.Err)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		err       error
		notFound  bool
		rejected  bool
		retryable bool
	}{
		{batterybank.ErrFacilityNotFound, true, false, false},
		{batterybank.ErrLedgerNotFound, true, false, false},
		{batterybank.ErrInvalidAmount, false, true, false},
		{batterybank.ErrOverflow, false, true, false},
		{batterybank.ValidationError{Field: "id", Message: "bad"}, false, true, false},
		{batterybank.ErrConflict, false, false, true},
		{batterybank.ErrStoreClosed, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := batterybank.IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound: got %v", got)
			}
			if got := batterybank.IsRejected(tt.err); got != tt.rejected {
				t.Errorf("IsRejected: got %v", got)
			}
			if got := batterybank.IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable: got %v", got)
			}
		})
	}

	if !errors.Is(batterybank.ErrInsufficientEnergy, producer.ErrInsufficientEnergy) {
		t.Error("root and producer sentinels should match")
	}
}
