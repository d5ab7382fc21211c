// Package id defines TypeID-based identity types for battery bank entities.
//
// Facilities and producer ledgers share one ID struct; the TypeID prefix
// says which kind of entity an ID names. IDs are K-sortable (UUIDv7-based),
// globally unique, and URL-safe in the format "prefix_suffix":
//
//	fac_01h2xcejqtf2nbrexx3vqjhp41   // facility
//	pled_01h455vb4pex5vsknk084sn02q  // producer ledger
package id

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixFacility Prefix = "fac"  // Battery bank facility
	PrefixLedger   Prefix = "pled" // Producer ledger
)

// ErrWrongPrefix is returned when a well-formed ID names another entity type.
var ErrWrongPrefix = errors.New("id: wrong prefix")

// ID identifies a facility or a producer ledger. The zero value is Nil and
// encodes as an empty string in JSON and as NULL in SQL.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// FacilityID is a type-safe identifier for facilities (prefix: "fac").
type FacilityID = ID

// LedgerID is a type-safe identifier for producer ledgers (prefix: "pled").
type LedgerID = ID

// New generates an ID with the given prefix. An invalid prefix is a
// programming error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// NewFacilityID generates a new unique facility ID.
func NewFacilityID() ID { return New(PrefixFacility) }

// NewLedgerID generates a new unique producer ledger ID.
func NewLedgerID() ID { return New(PrefixLedger) }

// Parse parses any well-formed TypeID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and requires its prefix to be want.
func ParseWithPrefix(s string, want Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != want {
		return Nil, fmt.Errorf("%w: expected %q, got %q", ErrWrongPrefix, want, got)
	}
	return parsed, nil
}

// ParseFacilityID parses a facility ID.
func ParseFacilityID(s string) (ID, error) { return ParseWithPrefix(s, PrefixFacility) }

// ParseLedgerID parses a producer ledger ID.
func ParseLedgerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLedger) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if i.IsNil() {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if i.IsNil() {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	return i.set(string(data))
}

// Value implements driver.Valuer.
func (i ID) Value() (driver.Value, error) {
	if i.IsNil() {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.String(), nil
}

// Scan implements sql.Scanner. NULL and empty strings yield Nil.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.set(v)
	case []byte:
		return i.set(string(v))
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

func (i *ID) set(s string) error {
	if s == "" {
		*i = Nil
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
