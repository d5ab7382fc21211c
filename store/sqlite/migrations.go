package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the battery bank store (SQLite).
var Migrations = migrate.NewGroup("batterybank")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_batterybank_facilities",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS batterybank_facilities (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    owner       TEXT NOT NULL,
    storage_fee INTEGER NOT NULL DEFAULT 0,
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_batterybank_facilities_owner ON batterybank_facilities (owner);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS batterybank_facilities`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_batterybank_ledgers",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS batterybank_ledgers (
    id              TEXT PRIMARY KEY,
    facility_id     TEXT NOT NULL,
    producer        TEXT NOT NULL,
    stored_amount   INTEGER NOT NULL DEFAULT 0,
    consumed_amount INTEGER NOT NULL DEFAULT 0,
    rate            INTEGER NOT NULL DEFAULT 0,
    balance         INTEGER NOT NULL DEFAULT 0,
    last_reconciled TIMESTAMP NOT NULL,
    capacity        INTEGER NOT NULL,
    transactions    TEXT NOT NULL DEFAULT '[]',
    version         INTEGER NOT NULL DEFAULT 1,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_batterybank_ledgers_facility_producer ON batterybank_ledgers (facility_id, producer);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS batterybank_ledgers`)
				return err
			},
		},
	)
}
