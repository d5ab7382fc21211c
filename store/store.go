// Package store defines the persistence contract for the battery bank.
package store

import (
	"context"

	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
)

// Store is the unified storage interface for facilities and producer ledgers.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Implementations return batterybank.ErrAlreadyExists, ErrFacilityNotFound,
// ErrLedgerNotFound and ErrConflict (possibly wrapped) so callers can match
// them with errors.Is.
type Store interface {
	// Facility methods
	CreateFacility(ctx context.Context, f *facility.Facility) error
	GetFacility(ctx context.Context, facilityID id.FacilityID) (*facility.Facility, error)
	ListFacilities(ctx context.Context, opts facility.ListOpts) ([]*facility.Facility, error)

	// Ledger methods. UpdateLedger succeeds only when the persisted version
	// equals l.Version-1.
	CreateLedger(ctx context.Context, l *producer.Ledger) error
	GetLedger(ctx context.Context, facilityID id.FacilityID, producerID string) (*producer.Ledger, error)
	ListLedgers(ctx context.Context, facilityID id.FacilityID, opts producer.ListOpts) ([]*producer.Ledger, error)
	UpdateLedger(ctx context.Context, l *producer.Ledger) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
