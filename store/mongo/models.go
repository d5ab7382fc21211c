package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/types"
)

// Unsigned counters are stored bit-for-bit as BSON int64.

// ==================== Facility models ====================

type facilityModel struct {
	grove.BaseModel `grove:"table:batterybank_facilities"`

	ID         string            `grove:"id,pk"       bson:"_id"`
	Name       string            `grove:"name"        bson:"name"`
	Owner      string            `grove:"owner"       bson:"owner"`
	StorageFee int64             `grove:"storage_fee" bson:"storage_fee"`
	Metadata   map[string]string `grove:"metadata"    bson:"metadata,omitempty"`
	CreatedAt  time.Time         `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"  bson:"updated_at"`
}

func toFacilityModel(f *facility.Facility) *facilityModel {
	return &facilityModel{
		ID:         f.ID.String(),
		Name:       f.Name,
		Owner:      f.Owner,
		StorageFee: int64(f.StorageFee),
		Metadata:   f.Metadata,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

func fromFacilityModel(m *facilityModel) (*facility.Facility, error) {
	facilityID, err := id.ParseFacilityID(m.ID)
	if err != nil {
		return nil, err
	}
	return &facility.Facility{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:         facilityID,
		Name:       m.Name,
		Owner:      m.Owner,
		StorageFee: uint64(m.StorageFee),
		Metadata:   m.Metadata,
	}, nil
}

// ==================== Ledger models ====================

type ledgerModel struct {
	grove.BaseModel `grove:"table:batterybank_ledgers"`

	ID             string             `grove:"id,pk"           bson:"_id"`
	FacilityID     string             `grove:"facility_id"     bson:"facility_id"`
	Producer       string             `grove:"producer"        bson:"producer"`
	StoredAmount   int64              `grove:"stored_amount"   bson:"stored_amount"`
	ConsumedAmount int64              `grove:"consumed_amount" bson:"consumed_amount"`
	Rate           int64              `grove:"rate"            bson:"rate"`
	Balance        int64              `grove:"balance"         bson:"balance"`
	LastReconciled time.Time          `grove:"last_reconciled" bson:"last_reconciled"`
	Capacity       int                `grove:"capacity"        bson:"capacity"`
	Transactions   []transactionModel `grove:"transactions"    bson:"transactions"`
	Version        int64              `grove:"version"         bson:"version"`
	CreatedAt      time.Time          `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time          `grove:"updated_at"      bson:"updated_at"`
}

type transactionModel struct {
	Kind      string    `bson:"kind"`
	Amount    int64     `bson:"amount"`
	Timestamp time.Time `bson:"timestamp"`
}

func toLedgerModel(l *producer.Ledger) *ledgerModel {
	txs := make([]transactionModel, len(l.Transactions))
	for i, tx := range l.Transactions {
		txs[i] = transactionModel{
			Kind:      string(tx.Kind),
			Amount:    int64(tx.Amount),
			Timestamp: tx.Timestamp,
		}
	}
	return &ledgerModel{
		ID:             l.ID.String(),
		FacilityID:     l.FacilityID.String(),
		Producer:       l.Producer,
		StoredAmount:   int64(l.StoredAmount),
		ConsumedAmount: int64(l.ConsumedAmount),
		Rate:           int64(l.Rate),
		Balance:        l.Balance,
		LastReconciled: l.LastReconciled,
		Capacity:       l.Capacity,
		Transactions:   txs,
		Version:        l.Version,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func fromLedgerModel(m *ledgerModel) (*producer.Ledger, error) {
	ledgerID, err := id.ParseLedgerID(m.ID)
	if err != nil {
		return nil, err
	}
	facilityID, err := id.ParseFacilityID(m.FacilityID)
	if err != nil {
		return nil, err
	}

	txs := make([]producer.Transaction, len(m.Transactions), max(m.Capacity, len(m.Transactions)))
	for i, tx := range m.Transactions {
		txs[i] = producer.Transaction{
			Kind:      producer.Kind(tx.Kind),
			Amount:    uint64(tx.Amount),
			Timestamp: tx.Timestamp.UTC(),
		}
	}

	return &producer.Ledger{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:             ledgerID,
		FacilityID:     facilityID,
		Producer:       m.Producer,
		StoredAmount:   uint64(m.StoredAmount),
		ConsumedAmount: uint64(m.ConsumedAmount),
		Rate:           uint64(m.Rate),
		Balance:        m.Balance,
		LastReconciled: m.LastReconciled.UTC(),
		Capacity:       m.Capacity,
		Transactions:   txs,
		Version:        m.Version,
	}, nil
}
