// Package types holds the record bookkeeping shared by facilities and ledgers.
package types

import "time"

// Entity carries creation and modification times for a persisted record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped with the current UTC time.
func NewEntity() Entity {
	return NewEntityAt(time.Now().UTC())
}

// NewEntityAt creates an Entity stamped with t.
func NewEntityAt(t time.Time) Entity {
	return Entity{CreatedAt: t, UpdatedAt: t}
}

// Touch sets UpdatedAt to t, ignoring readings that would move it backwards.
func (e *Entity) Touch(t time.Time) {
	if t.After(e.UpdatedAt) {
		e.UpdatedAt = t
	}
}

// LastModified returns how long ago the record was last updated, relative to now.
func (e Entity) LastModified(now time.Time) time.Duration {
	return now.Sub(e.UpdatedAt)
}
