package exchange

import (
	"time"

	"github.com/google/uuid"
)

// InstrumentStatus is the instrument lifecycle state.
type InstrumentStatus string

const (
	InstrumentStatusActive   InstrumentStatus = "active"
	InstrumentStatusInactive InstrumentStatus = "inactive"
	InstrumentStatusDeleted  InstrumentStatus = "deleted"
)

func (s InstrumentStatus) IsValid() bool {
	switch s {
	case InstrumentStatusActive, InstrumentStatusInactive, InstrumentStatusDeleted:
		return true
	default:
		return false
	}
}

// Instrument is a tradable symbol. Only active instruments accept new orders.
type Instrument struct {
	UID       uuid.UUID        `json:"uid"`
	Name      string           `json:"name"`
	Status    InstrumentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// AcceptsOrders reports whether new orders may be placed on the instrument.
func (i *Instrument) AcceptsOrders() bool {
	return i.Status == InstrumentStatusActive
}
