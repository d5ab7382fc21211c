// Package audithook bridges battery bank lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter, or the
// AMQPRecorder to publish events to a RabbitMQ exchange.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/plugin"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/reconcile"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnFacilityCreated   = (*Extension)(nil)
	_ plugin.OnEnergyStored      = (*Extension)(nil)
	_ plugin.OnEnergyConsumed    = (*Extension)(nil)
	_ plugin.OnLedgerReconciled  = (*Extension)(nil)
	_ plugin.OnOperationRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges bank lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnFacilityCreated implements plugin.OnFacilityCreated.
func (e *Extension) OnFacilityCreated(ctx context.Context, f *facility.Facility) error {
	return e.record(ctx, ActionFacilityCreated, SeverityInfo, OutcomeSuccess,
		ResourceFacility, f.ID.String(), CategoryRegistry, nil,
		"owner", f.Owner,
		"name", f.Name,
		"storage_fee", f.StorageFee,
	)
}

// OnEnergyStored implements plugin.OnEnergyStored.
func (e *Extension) OnEnergyStored(ctx context.Context, l *producer.Ledger, amount, rate uint64) error {
	return e.record(ctx, ActionEnergyStored, SeverityInfo, OutcomeSuccess,
		ResourceLedger, l.ID.String(), CategoryEnergy, nil,
		"facility_id", l.FacilityID.String(),
		"producer", l.Producer,
		"amount", amount,
		"rate", rate,
		"balance", l.Balance,
	)
}

// OnEnergyConsumed implements plugin.OnEnergyConsumed.
func (e *Extension) OnEnergyConsumed(ctx context.Context, l *producer.Ledger, amount uint64) error {
	return e.record(ctx, ActionEnergyConsumed, SeverityInfo, OutcomeSuccess,
		ResourceLedger, l.ID.String(), CategoryEnergy, nil,
		"facility_id", l.FacilityID.String(),
		"producer", l.Producer,
		"amount", amount,
		"balance", l.Balance,
	)
}

// OnLedgerReconciled implements plugin.OnLedgerReconciled.
func (e *Extension) OnLedgerReconciled(ctx context.Context, l *producer.Ledger, res reconcile.Result) error {
	return e.record(ctx, ActionLedgerReconciled, SeverityInfo, OutcomeSuccess,
		ResourceLedger, l.ID.String(), CategorySettlement, nil,
		"facility_id", l.FacilityID.String(),
		"producer", l.Producer,
		"storage_charge", res.StorageCharge,
		"consumption_charge", res.ConsumptionCharge,
		"balance", res.Balance,
	)
}

// OnOperationRejected implements plugin.OnOperationRejected.
func (e *Extension) OnOperationRejected(ctx context.Context, r plugin.Rejection) error {
	severity, category := SeverityWarning, CategoryEnergy
	switch {
	case errors.Is(r.Err, batterybank.ErrUnauthorized):
		category = CategoryAccess
	case errors.Is(r.Err, batterybank.ErrOverflow):
		severity = SeverityCritical
	case !batterybank.IsRejected(r.Err) && !batterybank.IsNotFound(r.Err):
		severity = SeverityError
	}
	if r.Operation == batterybank.OpCreateFacility {
		category = CategoryRegistry
	}

	return e.record(ctx, ActionOperationRejected, severity, OutcomeFailure,
		resourceFor(r.Operation), r.FacilityID, category, r.Err,
		"operation", r.Operation,
		"subject", r.Subject,
		"amount", r.Amount,
	)
}

func resourceFor(op string) string {
	if op == batterybank.OpCreateFacility {
		return ResourceFacility
	}
	return ResourceLedger
}

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and never fail the hook.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
