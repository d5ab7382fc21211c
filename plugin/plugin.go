// Package plugin provides lifecycle hooks into the battery bank engine.
// A plugin implements Plugin plus any subset of the hook interfaces below;
// the Registry discovers which ones at registration time.
package plugin

import (
	"context"

	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/reconcile"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the bank starts. b is the *batterybank.Bank.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, b interface{}) error
}

// OnShutdown is called when the bank stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Facility hooks
// ──────────────────────────────────────────────────

// OnFacilityCreated is called after a facility has been persisted.
type OnFacilityCreated interface {
	Plugin
	OnFacilityCreated(ctx context.Context, f *facility.Facility) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEnergyStored is called after a deposit has been persisted. l is the
// ledger as stored, already reconciled.
type OnEnergyStored interface {
	Plugin
	OnEnergyStored(ctx context.Context, l *producer.Ledger, amount, rate uint64) error
}

// OnEnergyConsumed is called after a withdrawal has been persisted.
type OnEnergyConsumed interface {
	Plugin
	OnEnergyConsumed(ctx context.Context, l *producer.Ledger, amount uint64) error
}

// OnLedgerReconciled is called for every persisted reconciliation, including
// the ones that follow a deposit or withdrawal.
type OnLedgerReconciled interface {
	Plugin
	OnLedgerReconciled(ctx context.Context, l *producer.Ledger, res reconcile.Result) error
}

// OnOperationRejected is called when an operation fails validation,
// authorization or persistence. Nothing was written.
type OnOperationRejected interface {
	Plugin
	OnOperationRejected(ctx context.Context, r Rejection) error
}

// Rejection describes a refused operation.
type Rejection struct {
	Operation  string
	FacilityID string
	Subject    string
	Amount     uint64
	Err        error
}
