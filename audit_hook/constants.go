package audithook

// Action constants for audit events.
const (
	ActionFacilityCreated   = "facility.created"
	ActionEnergyStored      = "energy.stored"
	ActionEnergyConsumed    = "energy.consumed"
	ActionLedgerReconciled  = "ledger.reconciled"
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceFacility = "facility"
	ResourceLedger   = "ledger"
)

// Category constants for audit events.
const (
	CategoryRegistry   = "registry"
	CategoryEnergy     = "energy"
	CategorySettlement = "settlement"
	CategoryAccess     = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
