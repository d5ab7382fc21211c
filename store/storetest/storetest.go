// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/store"
	"github.com/xraph/batterybank/types"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

var epoch = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// Run exercises every Store method against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"FacilityRoundTrip", testFacilityRoundTrip},
		{"FacilityDuplicate", testFacilityDuplicate},
		{"FacilityNotFound", testFacilityNotFound},
		{"ListFacilities", testListFacilities},
		{"LedgerRoundTrip", testLedgerRoundTrip},
		{"LedgerCreateConflict", testLedgerCreateConflict},
		{"LedgerVersionCheck", testLedgerVersionCheck},
		{"LedgerNotFound", testLedgerNotFound},
		{"ListLedgers", testListLedgers},
		{"NegativePaging", testNegativePaging},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// NewFacility returns an unsaved facility owned by owner.
func NewFacility(owner string, fee uint64) *facility.Facility {
	return &facility.Facility{
		Entity:     types.NewEntityAt(epoch),
		ID:         id.NewFacilityID(),
		Name:       "bank-" + owner,
		Owner:      owner,
		StorageFee: fee,
		Metadata:   map[string]string{"region": "north"},
	}
}

// NewLedger returns an unsaved ledger at version 1 holding one deposit.
func NewLedger(facilityID id.FacilityID, producerID string) *producer.Ledger {
	l := producer.NewLedger(facilityID, producerID, 4)
	l.Entity = types.NewEntityAt(epoch)
	if err := l.Store(5, 2, epoch); err != nil {
		panic(err)
	}
	l.Balance = 50
	l.LastReconciled = epoch
	l.Version = 1
	return l
}

func testFacilityRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := NewFacility("op", 10)
	if err := s.CreateFacility(ctx, f); err != nil {
		t.Fatalf("CreateFacility: %v", err)
	}

	got, err := s.GetFacility(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFacility: %v", err)
	}
	if got.ID.String() != f.ID.String() || got.Owner != "op" || got.StorageFee != 10 || got.Name != f.Name {
		t.Errorf("facility mismatch: got %+v, want %+v", got, f)
	}
	if got.Metadata["region"] != "north" {
		t.Errorf("metadata lost: %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, epoch)
	}
}

func testFacilityDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := NewFacility("op", 10)
	if err := s.CreateFacility(ctx, f); err != nil {
		t.Fatal(err)
	}
	dup := NewFacility("other", 99)
	dup.ID = f.ID
	if err := s.CreateFacility(ctx, dup); !errors.Is(err, batterybank.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, err := s.GetFacility(ctx, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "op" || got.StorageFee != 10 {
		t.Errorf("duplicate create overwrote the facility: %+v", got)
	}
}

func testFacilityNotFound(t *testing.T, s store.Store) {
	_, err := s.GetFacility(context.Background(), id.NewFacilityID())
	if !errors.Is(err, batterybank.ErrFacilityNotFound) {
		t.Fatalf("expected ErrFacilityNotFound, got %v", err)
	}
}

func testListFacilities(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, owner := range []string{"a", "b", "a"} {
		if err := s.CreateFacility(ctx, NewFacility(owner, 1)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListFacilities(ctx, facility.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all: got %d, want 3", len(all))
	}

	owned, err := s.ListFacilities(ctx, facility.ListOpts{Owner: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 {
		t.Errorf("owner filter: got %d, want 2", len(owned))
	}

	limited, err := s.ListFacilities(ctx, facility.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit: got %d, want 1", len(limited))
	}
}

func testLedgerRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	fid := id.NewFacilityID()
	l := NewLedger(fid, "p1")
	if err := s.CreateLedger(ctx, l); err != nil {
		t.Fatalf("CreateLedger: %v", err)
	}

	got, err := s.GetLedger(ctx, fid, "p1")
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if got.ID.String() != l.ID.String() || got.StoredAmount != 5 || got.Rate != 2 ||
		got.Balance != 50 || got.Version != 1 || got.Capacity != 4 {
		t.Errorf("ledger mismatch: got %+v", got)
	}
	if !got.LastReconciled.Equal(epoch) {
		t.Errorf("LastReconciled: got %v, want %v", got.LastReconciled, epoch)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("transactions: got %d, want 1", len(got.Transactions))
	}
	tx := got.Transactions[0]
	if tx.Kind != producer.KindStore || tx.Amount != 5 || !tx.Timestamp.Equal(epoch) {
		t.Errorf("transaction mismatch: %+v", tx)
	}

	got.StoredAmount = 999
	again, err := s.GetLedger(ctx, fid, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if again.StoredAmount != 5 {
		t.Error("mutating a returned ledger changed the stored copy")
	}
}

func testLedgerCreateConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	fid := id.NewFacilityID()
	if err := s.CreateLedger(ctx, NewLedger(fid, "p1")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateLedger(ctx, NewLedger(fid, "p1")); !errors.Is(err, batterybank.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func testLedgerVersionCheck(t *testing.T, s store.Store) {
	ctx := context.Background()
	fid := id.NewFacilityID()
	l := NewLedger(fid, "p1")
	if err := s.CreateLedger(ctx, l); err != nil {
		t.Fatal(err)
	}

	next := l.Clone()
	if err := next.Consume(3, epoch.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	next.Balance = 44
	next.Version = 2
	if err := s.UpdateLedger(ctx, next); err != nil {
		t.Fatalf("UpdateLedger: %v", err)
	}

	stale := l.Clone()
	stale.Version = 2
	stale.Balance = -1
	if err := s.UpdateLedger(ctx, stale); !errors.Is(err, batterybank.ErrConflict) {
		t.Fatalf("stale update: expected ErrConflict, got %v", err)
	}

	got, err := s.GetLedger(ctx, fid, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || got.Balance != 44 || got.ConsumedAmount != 3 || len(got.Transactions) != 2 {
		t.Errorf("ledger after update: %+v", got)
	}
}

func testLedgerNotFound(t *testing.T, s store.Store) {
	_, err := s.GetLedger(context.Background(), id.NewFacilityID(), "nobody")
	if !errors.Is(err, batterybank.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
}

func testListLedgers(t *testing.T, s store.Store) {
	ctx := context.Background()
	fid := id.NewFacilityID()
	for _, p := range []string{"p1", "p2", "p3"} {
		if err := s.CreateLedger(ctx, NewLedger(fid, p)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateLedger(ctx, NewLedger(id.NewFacilityID(), "p1")); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListLedgers(ctx, fid, producer.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("got %d ledgers, want 3", len(all))
	}

	limited, err := s.ListLedgers(ctx, fid, producer.ListOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit: got %d, want 2", len(limited))
	}
}

func testNegativePaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := NewFacility("op", 1)
	if err := s.CreateFacility(ctx, f); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"p1", "p2"} {
		if err := s.CreateLedger(ctx, NewLedger(f.ID, p)); err != nil {
			t.Fatal(err)
		}
	}

	fs, err := s.ListFacilities(ctx, facility.ListOpts{Limit: -1, Offset: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(fs) != 1 {
		t.Errorf("facilities: got %d, want 1", len(fs))
	}

	ls, err := s.ListLedgers(ctx, f.ID, producer.ListOpts{Limit: -5, Offset: -3})
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 2 {
		t.Errorf("ledgers: got %d, want 2", len(ls))
	}
}
