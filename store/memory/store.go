// Package memory provides an in-process Store backed by maps. Records are
// deep-copied on the way in and out, so callers never share state with the
// store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Facility storage, plus creation order for listing
	facilities    map[string]*facility.Facility
	facilityOrder []string

	// Ledger storage keyed by facility and producer
	ledgers     map[string]*producer.Ledger
	ledgerOrder map[string][]string
}

func New() *Store {
	return &Store{
		facilities:  make(map[string]*facility.Facility),
		ledgers:     make(map[string]*producer.Ledger),
		ledgerOrder: make(map[string][]string),
	}
}

func ledgerKey(facilityID id.FacilityID, producerID string) string {
	return facilityID.String() + "/" + producerID
}

// Facility Store implementation
func (s *Store) CreateFacility(_ context.Context, f *facility.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return batterybank.ErrStoreClosed
	}
	key := f.ID.String()
	if _, exists := s.facilities[key]; exists {
		return fmt.Errorf("batterybank/memory: create facility %s: %w", key, batterybank.ErrAlreadyExists)
	}
	s.facilities[key] = f.Clone()
	s.facilityOrder = append(s.facilityOrder, key)
	return nil
}

func (s *Store) GetFacility(_ context.Context, facilityID id.FacilityID) (*facility.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, batterybank.ErrStoreClosed
	}
	if f, ok := s.facilities[facilityID.String()]; ok {
		return f.Clone(), nil
	}
	return nil, batterybank.ErrFacilityNotFound
}

func (s *Store) ListFacilities(_ context.Context, opts facility.ListOpts) ([]*facility.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, batterybank.ErrStoreClosed
	}
	result := make([]*facility.Facility, 0)
	for _, key := range s.facilityOrder {
		f := s.facilities[key]
		if opts.Owner == "" || f.Owner == opts.Owner {
			result = append(result, f.Clone())
		}
	}
	return page(result, opts.Limit, opts.Offset), nil
}

// Ledger Store implementation
func (s *Store) CreateLedger(_ context.Context, l *producer.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return batterybank.ErrStoreClosed
	}
	key := ledgerKey(l.FacilityID, l.Producer)
	if _, exists := s.ledgers[key]; exists {
		return fmt.Errorf("batterybank/memory: create ledger %s: %w", key, batterybank.ErrConflict)
	}
	s.ledgers[key] = l.Clone()
	fk := l.FacilityID.String()
	s.ledgerOrder[fk] = append(s.ledgerOrder[fk], key)
	return nil
}

func (s *Store) GetLedger(_ context.Context, facilityID id.FacilityID, producerID string) (*producer.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, batterybank.ErrStoreClosed
	}
	if l, ok := s.ledgers[ledgerKey(facilityID, producerID)]; ok {
		return l.Clone(), nil
	}
	return nil, batterybank.ErrLedgerNotFound
}

func (s *Store) ListLedgers(_ context.Context, facilityID id.FacilityID, opts producer.ListOpts) ([]*producer.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, batterybank.ErrStoreClosed
	}
	keys := s.ledgerOrder[facilityID.String()]
	result := make([]*producer.Ledger, 0, len(keys))
	for _, key := range keys {
		result = append(result, s.ledgers[key].Clone())
	}
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateLedger(_ context.Context, l *producer.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return batterybank.ErrStoreClosed
	}
	key := ledgerKey(l.FacilityID, l.Producer)
	existing, ok := s.ledgers[key]
	if !ok {
		return batterybank.ErrLedgerNotFound
	}
	if existing.Version != l.Version-1 {
		return fmt.Errorf("batterybank/memory: update ledger %s: version %d, have %d: %w",
			key, l.Version, existing.Version, batterybank.ErrConflict)
	}
	s.ledgers[key] = l.Clone()
	return nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return batterybank.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// page applies limit and offset the way the SQL stores do: non-positive
// values are ignored.
func page[T any](items []T, limit, offset int) []T {
	start := min(max(offset, 0), len(items))
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
