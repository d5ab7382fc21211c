// Package observability provides a metrics extension for the battery bank
// that records lifecycle event counts and energy volumes through a
// MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/plugin"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/reconcile"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnFacilityCreated   = (*MetricsExtension)(nil)
	_ plugin.OnEnergyStored      = (*MetricsExtension)(nil)
	_ plugin.OnEnergyConsumed    = (*MetricsExtension)(nil)
	_ plugin.OnLedgerReconciled  = (*MetricsExtension)(nil)
	_ plugin.OnOperationRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Bank plugin to track deposits, withdrawals and rejections.
type MetricsExtension struct {
	factory MetricFactory

	// Facility metrics
	FacilityCreated Counter

	// Ledger metrics
	Deposits           Counter
	Withdrawals        Counter
	EnergyStored       Counter
	EnergyConsumed     Counter
	DepositAmount      Histogram
	WithdrawalAmount   Histogram
	HistoryUtilization Histogram

	// Reconciliation metrics
	Reconciliations Counter
	Balance         Histogram

	// Rejection metrics
	Rejected                   Counter
	RejectedUnauthorized       Counter
	RejectedInsufficientEnergy Counter
	RejectedCapacityExceeded   Counter
	RejectedOverflow           Counter
	Conflicts                  Counter
	StoreErrors                Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		FacilityCreated: factory.Counter("batterybank.facility.created"),

		Deposits:           factory.Counter("batterybank.ledger.deposits"),
		Withdrawals:        factory.Counter("batterybank.ledger.withdrawals"),
		EnergyStored:       factory.Counter("batterybank.energy.stored"),
		EnergyConsumed:     factory.Counter("batterybank.energy.consumed"),
		DepositAmount:      factory.Histogram("batterybank.ledger.deposit_amount"),
		WithdrawalAmount:   factory.Histogram("batterybank.ledger.withdrawal_amount"),
		HistoryUtilization: factory.Histogram("batterybank.ledger.history_utilization"),

		Reconciliations: factory.Counter("batterybank.reconcile.runs"),
		Balance:         factory.Histogram("batterybank.reconcile.balance"),

		Rejected:                   factory.Counter("batterybank.rejected"),
		RejectedUnauthorized:       factory.Counter("batterybank.rejected.unauthorized"),
		RejectedInsufficientEnergy: factory.Counter("batterybank.rejected.insufficient_energy"),
		RejectedCapacityExceeded:   factory.Counter("batterybank.rejected.capacity_exceeded"),
		RejectedOverflow:           factory.Counter("batterybank.rejected.overflow"),
		Conflicts:                  factory.Counter("batterybank.store.conflicts"),
		StoreErrors:                factory.Counter("batterybank.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnFacilityCreated implements plugin.OnFacilityCreated.
func (m *MetricsExtension) OnFacilityCreated(_ context.Context, _ *facility.Facility) error {
	m.FacilityCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEnergyStored implements plugin.OnEnergyStored.
func (m *MetricsExtension) OnEnergyStored(_ context.Context, l *producer.Ledger, amount, _ uint64) error {
	m.Deposits.Inc()
	m.EnergyStored.Add(float64(amount))
	m.DepositAmount.Observe(float64(amount))
	m.observeHistory(l)
	return nil
}

// OnEnergyConsumed implements plugin.OnEnergyConsumed.
func (m *MetricsExtension) OnEnergyConsumed(_ context.Context, l *producer.Ledger, amount uint64) error {
	m.Withdrawals.Inc()
	m.EnergyConsumed.Add(float64(amount))
	m.WithdrawalAmount.Observe(float64(amount))
	m.observeHistory(l)
	return nil
}

// OnLedgerReconciled implements plugin.OnLedgerReconciled.
func (m *MetricsExtension) OnLedgerReconciled(_ context.Context, _ *producer.Ledger, res reconcile.Result) error {
	m.Reconciliations.Inc()
	m.Balance.Observe(float64(res.Balance))
	return nil
}

func (m *MetricsExtension) observeHistory(l *producer.Ledger) {
	if l.Capacity > 0 {
		m.HistoryUtilization.Observe(float64(l.Len()) / float64(l.Capacity))
	}
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnOperationRejected implements plugin.OnOperationRejected.
func (m *MetricsExtension) OnOperationRejected(_ context.Context, r plugin.Rejection) error {
	m.Rejected.Inc()

	switch {
	case errors.Is(r.Err, batterybank.ErrUnauthorized):
		m.RejectedUnauthorized.Inc()
	case errors.Is(r.Err, batterybank.ErrInsufficientEnergy):
		m.RejectedInsufficientEnergy.Inc()
	case errors.Is(r.Err, batterybank.ErrCapacityExceeded):
		m.RejectedCapacityExceeded.Inc()
	case errors.Is(r.Err, batterybank.ErrOverflow):
		m.RejectedOverflow.Inc()
	case batterybank.IsRetryable(r.Err):
		m.Conflicts.Inc()
	case !batterybank.IsRejected(r.Err) && !batterybank.IsNotFound(r.Err) && !errors.Is(r.Err, batterybank.ErrAlreadyExists):
		m.StoreErrors.Inc()
	}
	return nil
}
