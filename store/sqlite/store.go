package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/batterybank"
	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
	bankstore "github.com/xraph/batterybank/store"
)

// compile-time interface check
var _ bankstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("batterybank/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("batterybank/sqlite: migration failed: %w", err)
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
	res, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("batterybank/sqlite: create facility: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return batterybank.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetFacility(ctx context.Context, facilityID id.FacilityID) (*facility.Facility, error) {
	m := new(facilityModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", facilityID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, batterybank.ErrFacilityNotFound
		}
		return nil, fmt.Errorf("batterybank/sqlite: get facility: %w", err)
	}
	return fromFacilityModel(m)
}

func (s *Store) ListFacilities(ctx context.Context, opts facility.ListOpts) ([]*facility.Facility, error) {
	var models []facilityModel
	q := s.sdb.NewSelect(&models)

	if opts.Owner != "" {
		q = q.Where("owner = ?", opts.Owner)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("batterybank/sqlite: list facilities: %w", err)
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
	m, err := toLedgerModel(l)
	if err != nil {
		return fmt.Errorf("batterybank/sqlite: create ledger: %w", err)
	}
	res, err := s.sdb.NewInsert(m).
		OnConflict("(facility_id, producer) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("batterybank/sqlite: create ledger: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return batterybank.ErrConflict
	}
	return nil
}

func (s *Store) GetLedger(ctx context.Context, facilityID id.FacilityID, producerID string) (*producer.Ledger, error) {
	m := new(ledgerModel)
	err := s.sdb.NewSelect(m).
		Where("facility_id = ?", facilityID.String()).
		Where("producer = ?", producerID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, batterybank.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("batterybank/sqlite: get ledger: %w", err)
	}
	return fromLedgerModel(m)
}

func (s *Store) ListLedgers(ctx context.Context, facilityID id.FacilityID, opts producer.ListOpts) ([]*producer.Ledger, error) {
	var models []ledgerModel
	q := s.sdb.NewSelect(&models).Where("facility_id = ?", facilityID.String())

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("batterybank/sqlite: list ledgers: %w", err)
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

// UpdateLedger writes l only if the row is still at version l.Version-1.
func (s *Store) UpdateLedger(ctx context.Context, l *producer.Ledger) error {
	m, err := toLedgerModel(l)
	if err != nil {
		return fmt.Errorf("batterybank/sqlite: update ledger: %w", err)
	}
	res, err := s.sdb.NewUpdate((*ledgerModel)(nil)).
		Set("stored_amount = ?", m.StoredAmount).
		Set("consumed_amount = ?", m.ConsumedAmount).
		Set("rate = ?", m.Rate).
		Set("balance = ?", m.Balance).
		Set("last_reconciled = ?", m.LastReconciled).
		Set("transactions = ?", m.Transactions).
		Set("version = ?", m.Version).
		Set("updated_at = ?", m.UpdatedAt).
		Where("id = ?", m.ID).
		Where("version = ?", m.Version-1).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("batterybank/sqlite: update ledger: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.missingOrStale(ctx, l)
	}
	return nil
}

func (s *Store) missingOrStale(ctx context.Context, l *producer.Ledger) error {
	if _, err := s.GetLedger(ctx, l.FacilityID, l.Producer); err != nil {
		return err
	}
	return fmt.Errorf("batterybank/sqlite: update ledger %s at version %d: %w", l.ID, l.Version, batterybank.ErrConflict)
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
