package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
	bankstore "github.com/xraph/batterybank/store"
)

// Collection name constants.
const (
	colFacilities = "batterybank_facilities"
	colLedgers    = "batterybank_ledgers"
)

// compile-time interface check
var _ bankstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. A ledger and its
// transaction history live in one document, so every write is atomic.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all battery bank collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("batterybank/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Facility Store ====================

func (s *Store) CreateFacility(ctx context.Context, f *facility.Facility) error {
	m := toFacilityModel(f)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return batterybank.ErrAlreadyExists
		}
		return fmt.Errorf("batterybank/mongo: create facility: %w", err)
	}
	return nil
}

func (s *Store) GetFacility(ctx context.Context, facilityID id.FacilityID) (*facility.Facility, error) {
	var m facilityModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": facilityID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, batterybank.ErrFacilityNotFound
		}
		return nil, fmt.Errorf("batterybank/mongo: get facility: %w", err)
	}
	return fromFacilityModel(&m)
}

func (s *Store) ListFacilities(ctx context.Context, opts facility.ListOpts) ([]*facility.Facility, error) {
	var models []facilityModel

	filter := bson.M{}
	if opts.Owner != "" {
		filter["owner"] = opts.Owner
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("batterybank/mongo: list facilities: %w", err)
	}

	result := make([]*facility.Facility, len(models))
	for i := range models {
		f, err := fromFacilityModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = f
	}
	return result, nil
}

// ==================== Ledger Store ====================

func (s *Store) CreateLedger(ctx context.Context, l *producer.Ledger) error {
	m := toLedgerModel(l)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return batterybank.ErrConflict
		}
		return fmt.Errorf("batterybank/mongo: create ledger: %w", err)
	}
	return nil
}

func (s *Store) GetLedger(ctx context.Context, facilityID id.FacilityID, producerID string) (*producer.Ledger, error) {
	var m ledgerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"facility_id": facilityID.String(), "producer": producerID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, batterybank.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("batterybank/mongo: get ledger: %w", err)
	}
	return fromLedgerModel(&m)
}

func (s *Store) ListLedgers(ctx context.Context, facilityID id.FacilityID, opts producer.ListOpts) ([]*producer.Ledger, error) {
	var models []ledgerModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"facility_id": facilityID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("batterybank/mongo: list ledgers: %w", err)
	}

	result := make([]*producer.Ledger, len(models))
	for i := range models {
		l, err := fromLedgerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// UpdateLedger replaces the document only if it is still at version
// l.Version-1.
func (s *Store) UpdateLedger(ctx context.Context, l *producer.Ledger) error {
	m := toLedgerModel(l)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "version": m.Version - 1}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("batterybank/mongo: update ledger: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetLedger(ctx, l.FacilityID, l.Producer); err != nil {
			return err
		}
		return fmt.Errorf("batterybank/mongo: update ledger %s at version %d: %w", l.ID, l.Version, batterybank.ErrConflict)
	}
	return nil
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all battery bank collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colFacilities: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colLedgers: {
			{
				Keys:    bson.D{{Key: "facility_id", Value: 1}, {Key: "producer", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "facility_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}
