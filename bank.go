package batterybank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/batterybank/authz"
	"github.com/xraph/batterybank/clock"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/plugin"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/reconcile"
	"github.com/xraph/batterybank/store"
	"github.com/xraph/batterybank/types"
)

// DefaultMaxTransactions is the history capacity given to new ledgers.
const DefaultMaxTransactions = 50

// Operation names reported to plugins and logs.
const (
	OpCreateFacility = "create_facility"
	OpDeposit        = "deposit"
	OpWithdraw       = "withdraw"
	OpReconcile      = "reconcile"
)

// Bank is the battery bank engine.
type Bank struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   clock.Clock

	maxTransactions int
}

// New creates a new Bank instance.
func New(s store.Store, opts ...Option) *Bank {
	b := &Bank{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		clock:           clock.System{},
		maxTransactions: DefaultMaxTransactions,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Option configures a Bank instance.
type Option func(*Bank)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bank) {
		b.logger = logger
		b.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(b *Bank) {
		_ = b.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds how long a single plugin hook may run.
func WithPluginTimeout(d time.Duration) Option {
	return func(b *Bank) {
		b.plugins.WithTimeout(d)
	}
}

// WithClock sets the timestamp source for transactions and reconciliations.
func WithClock(c clock.Clock) Option {
	return func(b *Bank) {
		b.clock = c
	}
}

// WithMaxTransactions sets the history capacity of ledgers created from now
// on. Existing ledgers keep the capacity they were created with.
func WithMaxTransactions(n int) Option {
	return func(b *Bank) {
		if n > 0 {
			b.maxTransactions = n
		}
	}
}

// Store returns the underlying store.
func (b *Bank) Store() store.Store { return b.store }

// Plugins returns the plugin registry.
func (b *Bank) Plugins() *plugin.Registry { return b.plugins }

// Start migrates the store and initializes plugins.
func (b *Bank) Start(ctx context.Context) error {
	if err := b.store.Migrate(ctx); err != nil {
		return err
	}

	b.plugins.EmitInit(ctx, b)

	b.logger.Info("batterybank started",
		"max_transactions", b.maxTransactions,
		"plugins", b.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (b *Bank) Stop() error {
	b.plugins.EmitShutdown(context.Background())
	return b.store.Close()
}

// ──────────────────────────────────────────────────
// Facility Registry
// ──────────────────────────────────────────────────

// CreateFacility registers a facility administered by owner. The facility's
// Owner is taken from the grant and an ID is generated when f has none.
// A facility whose ID is already registered fails with ErrAlreadyExists.
func (b *Bank) CreateFacility(ctx context.Context, owner authz.Grant, f *facility.Facility) (*facility.Facility, error) {
	rej := plugin.Rejection{Operation: OpCreateFacility, Subject: owner.Subject}

	if err := authz.RequireOwner(owner, ""); err != nil {
		return nil, b.reject(ctx, rej, err)
	}
	if f == nil {
		return nil, b.reject(ctx, rej, ValidationError{Field: "facility", Message: "is required"})
	}
	if !f.ID.IsNil() && f.ID.Prefix() != id.PrefixFacility {
		return nil, b.reject(ctx, rej, ValidationError{Field: "id", Message: fmt.Sprintf("expected prefix %q, got %q", id.PrefixFacility, f.ID.Prefix())})
	}

	fac := f.Clone()
	if fac.ID.IsNil() {
		fac.ID = id.NewFacilityID()
	}
	rej.FacilityID = fac.ID.String()
	fac.Owner = owner.Subject
	fac.Entity = types.NewEntityAt(b.clock.Now())

	if err := b.store.CreateFacility(ctx, fac); err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	b.logger.Info("facility created",
		"facility_id", fac.ID.String(),
		"owner", fac.Owner,
		"storage_fee", fac.StorageFee,
	)
	b.plugins.EmitFacilityCreated(ctx, fac)

	return fac, nil
}

// GetFacility retrieves a facility by ID.
func (b *Bank) GetFacility(ctx context.Context, facilityID id.FacilityID) (*facility.Facility, error) {
	return b.store.GetFacility(ctx, facilityID)
}

// ListFacilities lists registered facilities.
func (b *Bank) ListFacilities(ctx context.Context, opts facility.ListOpts) ([]*facility.Facility, error) {
	return b.store.ListFacilities(ctx, opts)
}

// ──────────────────────────────────────────────────
// Producer Ledger
// ──────────────────────────────────────────────────

// Deposit stores amount units for the producer and sets the ledger's rate.
// The ledger is created on the producer's first deposit.
func (b *Bank) Deposit(ctx context.Context, facilityID id.FacilityID, producerGrant authz.Grant, amount, rate uint64) (*producer.Ledger, error) {
	rej := plugin.Rejection{Operation: OpDeposit, FacilityID: facilityID.String(), Subject: producerGrant.Subject, Amount: amount}

	if err := authz.RequireProducer(producerGrant); err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	fac, err := b.store.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	current, err := b.store.GetLedger(ctx, facilityID, producerGrant.Subject)
	switch {
	case errors.Is(err, ErrLedgerNotFound):
		current = nil
	case err != nil:
		return nil, b.reject(ctx, rej, err)
	}

	var next *producer.Ledger
	if current == nil {
		next = producer.NewLedger(facilityID, producerGrant.Subject, b.maxTransactions)
		next.Entity = types.NewEntityAt(b.clock.Now())
	} else {
		next = current.Clone()
	}

	at := b.stamp(next)
	if err := next.Store(amount, rate, at); err != nil {
		return nil, b.reject(ctx, rej, err)
	}
	res, err := b.commit(ctx, fac, next, current == nil, at)
	if err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	b.logger.Debug("energy stored",
		"facility_id", facilityID.String(),
		"producer", producerGrant.Subject,
		"amount", amount,
		"rate", rate,
		"balance", next.Balance,
	)
	b.plugins.EmitEnergyStored(ctx, next, amount, rate)
	b.plugins.EmitLedgerReconciled(ctx, next, res)

	return next, nil
}

// Withdraw consumes amount units from the producer's ledger. Both the
// producer and the facility owner must authorize it.
func (b *Bank) Withdraw(ctx context.Context, facilityID id.FacilityID, producerGrant, ownerGrant authz.Grant, amount uint64) (*producer.Ledger, error) {
	rej := plugin.Rejection{Operation: OpWithdraw, FacilityID: facilityID.String(), Subject: producerGrant.Subject, Amount: amount}

	if err := authz.RequireProducer(producerGrant); err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	fac, err := b.store.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, b.reject(ctx, rej, err)
	}
	if err := authz.RequireOwner(ownerGrant, fac.Owner); err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	current, err := b.store.GetLedger(ctx, facilityID, producerGrant.Subject)
	if err != nil {
		if errors.Is(err, ErrLedgerNotFound) {
			err = fmt.Errorf("%w: %w", ErrInsufficientEnergy, err)
		}
		return nil, b.reject(ctx, rej, err)
	}

	next := current.Clone()
	at := b.stamp(next)
	if err := next.Consume(amount, at); err != nil {
		return nil, b.reject(ctx, rej, err)
	}
	res, err := b.commit(ctx, fac, next, false, at)
	if err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	b.logger.Debug("energy consumed",
		"facility_id", facilityID.String(),
		"producer", producerGrant.Subject,
		"amount", amount,
		"balance", next.Balance,
	)
	b.plugins.EmitEnergyConsumed(ctx, next, amount)
	b.plugins.EmitLedgerReconciled(ctx, next, res)

	return next, nil
}

// Reconcile recomputes the producer's balance and records a new
// reconciliation time. Totals are unchanged, so repeating it yields the
// same balance.
func (b *Bank) Reconcile(ctx context.Context, facilityID id.FacilityID, producerGrant authz.Grant) (*producer.Ledger, error) {
	rej := plugin.Rejection{Operation: OpReconcile, FacilityID: facilityID.String(), Subject: producerGrant.Subject}

	if err := authz.RequireProducer(producerGrant); err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	fac, err := b.store.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, b.reject(ctx, rej, err)
	}
	current, err := b.store.GetLedger(ctx, facilityID, producerGrant.Subject)
	if err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	next := current.Clone()
	res, err := b.commit(ctx, fac, next, false, b.stamp(next))
	if err != nil {
		return nil, b.reject(ctx, rej, err)
	}

	b.plugins.EmitLedgerReconciled(ctx, next, res)
	return next, nil
}

// GetLedger retrieves the producer's ledger at a facility.
func (b *Bank) GetLedger(ctx context.Context, facilityID id.FacilityID, producerID string) (*producer.Ledger, error) {
	return b.store.GetLedger(ctx, facilityID, producerID)
}

// ListLedgers lists the producer ledgers at a facility.
func (b *Bank) ListLedgers(ctx context.Context, facilityID id.FacilityID, opts producer.ListOpts) ([]*producer.Ledger, error) {
	return b.store.ListLedgers(ctx, facilityID, opts)
}

// Transactions returns the producer's transaction history in the order it
// was recorded.
func (b *Bank) Transactions(ctx context.Context, facilityID id.FacilityID, producerID string) ([]producer.Transaction, error) {
	l, err := b.store.GetLedger(ctx, facilityID, producerID)
	if err != nil {
		return nil, err
	}
	return l.History(), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// stamp reads the clock, never going back past the ledger's previous
// reconciliation.
func (b *Bank) stamp(l *producer.Ledger) time.Time {
	now := b.clock.Now()
	if now.Before(l.LastReconciled) {
		return l.LastReconciled
	}
	return now
}

// commit reconciles next against the facility fee and persists it. next is a
// private copy; on error nothing has been written.
func (b *Bank) commit(ctx context.Context, fac *facility.Facility, next *producer.Ledger, create bool, at time.Time) (reconcile.Result, error) {
	res, err := reconcile.Run(next.Inputs(fac.StorageFee), at)
	if err != nil {
		return reconcile.Result{}, err
	}
	next.Apply(res)
	next.Touch(at)
	next.Version++

	if create {
		err = b.store.CreateLedger(ctx, next)
	} else {
		err = b.store.UpdateLedger(ctx, next)
	}
	if err != nil {
		return reconcile.Result{}, err
	}
	return res, nil
}

func (b *Bank) reject(ctx context.Context, rej plugin.Rejection, err error) error {
	rej.Err = err

	level := slog.LevelDebug
	if !IsRejected(err) && !IsNotFound(err) {
		level = slog.LevelWarn
	}
	b.logger.Log(ctx, level, "operation rejected",
		"operation", rej.Operation,
		"facility_id", rej.FacilityID,
		"subject", rej.Subject,
		"amount", rej.Amount,
		"error", err,
	)
	b.plugins.EmitOperationRejected(ctx, rej)

	return err
}
