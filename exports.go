package batterybank

import (
	"github.com/xraph/batterybank/authz"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/types"
)

// Re-export common types for convenience so callers rarely need the leaf packages.

// Entity is re-exported from types package.
type Entity = types.Entity

// Facility is re-exported from facility package.
type Facility = facility.Facility

// Ledger is re-exported from producer package.
type Ledger = producer.Ledger

// Transaction is re-exported from producer package.
type Transaction = producer.Transaction

// Grant is re-exported from authz package.
type Grant = authz.Grant

// Re-export grant constructors
var (
	ProducerGrant = authz.Producer
	OwnerGrant    = authz.Owner
)

// Re-export transaction kinds
const (
	KindStore   = producer.KindStore
	KindConsume = producer.KindConsume
)
