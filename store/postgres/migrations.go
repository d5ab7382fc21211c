package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the battery bank store.
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
    storage_fee BIGINT NOT NULL DEFAULT 0,
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    stored_amount   BIGINT NOT NULL DEFAULT 0,
    consumed_amount BIGINT NOT NULL DEFAULT 0,
    rate            BIGINT NOT NULL DEFAULT 0,
    balance         BIGINT NOT NULL DEFAULT 0,
    last_reconciled TIMESTAMPTZ NOT NULL,
    capacity        INT NOT NULL,
    transactions    JSONB NOT NULL DEFAULT '[]',
    version         BIGINT NOT NULL DEFAULT 1,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
