package facility

import (
	"github.com/xraph/batterybank/id"
	"github.com/xraph/batterybank/types"
)

// Facility is a battery bank. Its owner and storage fee are fixed once created.
type Facility struct {
	types.Entity
	ID         id.FacilityID     `json:"id"`
	Name       string            `json:"name,omitempty"`
	Owner      string            `json:"owner"`
	StorageFee uint64            `json:"storage_fee"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no mutable state with f.
func (f *Facility) Clone() *Facility {
	c := *f
	if f.Metadata != nil {
		c.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
