package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/batterybank/facility"
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/producer"
	"github.com/xraph/batterybank/types"
)

// Unsigned counters are stored bit-for-bit in INTEGER columns; SQLite
// integers are signed 64-bit.

// ==================== Facility models ====================

type facilityModel struct {
	grove.BaseModel `grove:"table:batterybank_facilities"`

	ID         string          `grove:"id,pk"`
	Name       string          `grove:"name"`
	Owner      string          `grove:"owner"`
	StorageFee int64           `grove:"storage_fee"`
	Metadata   json.RawMessage `grove:"metadata"`
	CreatedAt  time.Time       `grove:"created_at"`
	UpdatedAt  time.Time       `grove:"updated_at"`
}

func toFacilityModel(f *facility.Facility) *facilityModel {
	metadata, _ := json.Marshal(f.Metadata) //nolint:errcheck // map[string]string always encodes
	return &facilityModel{
		ID:         f.ID.String(),
		Name:       f.Name,
		Owner:      f.Owner,
		StorageFee: int64(f.StorageFee),
		Metadata:   metadata,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

func fromFacilityModel(m *facilityModel) (*facility.Facility, error) {
	facilityID, err := id.ParseFacilityID(m.ID)
	if err != nil {
		return nil, err
	}
	var metadata map[string]string
	if len(m.Metadata) > 0 && string(m.Metadata) != "null" {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
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
		Metadata:   metadata,
	}, nil
}

// ==================== Ledger models ====================

type ledgerModel struct {
	grove.BaseModel `grove:"table:batterybank_ledgers"`

	ID             string          `grove:"id,pk"`
	FacilityID     string          `grove:"facility_id"`
	Producer       string          `grove:"producer"`
	StoredAmount   int64           `grove:"stored_amount"`
	ConsumedAmount int64           `grove:"consumed_amount"`
	Rate           int64           `grove:"rate"`
	Balance        int64           `grove:"balance"`
	LastReconciled time.Time       `grove:"last_reconciled"`
	Capacity       int             `grove:"capacity"`
	Transactions   json.RawMessage `grove:"transactions"`
	Version        int64           `grove:"version"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toLedgerModel(l *producer.Ledger) (*ledgerModel, error) {
	txs := l.Transactions
	if txs == nil {
		txs = []producer.Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
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
		Transactions:   raw,
		Version:        l.Version,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}, nil
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

	txs := make([]producer.Transaction, 0, m.Capacity)
	if len(m.Transactions) > 0 {
		if err := json.Unmarshal(m.Transactions, &txs); err != nil {
			return nil, fmt.Errorf("decode transactions: %w", err)
		}
	}
	for i := range txs {
		txs[i].Timestamp = txs[i].Timestamp.UTC()
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
