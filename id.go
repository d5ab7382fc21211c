package batterybank

import "github.com/xraph/batterybank/id"

// ID is the primary identifier type for facilities and ledgers.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
