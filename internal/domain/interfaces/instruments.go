package interfaces

import (
	"context"

	exchange "main/internal/domain/entity/exchange"

	"github.com/google/uuid"
)

// InstrumentsRepository manages the instrument catalog. Creating an
// instrument provisions a zero quantity balance for every existing user.
type InstrumentsRepository interface {
	CreateInstrument(ctx context.Context, instrument *exchange.Instrument) error
	GetInstrument(ctx context.Context, uid uuid.UUID) (*exchange.Instrument, error)
	UpdateInstrument(ctx context.Context, instrument *exchange.Instrument) error
	ListInstruments(ctx context.Context) ([]*exchange.Instrument, error)
	Close()
}
