package exchange

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashBalance is a user's settlement-currency balance. Never negative
// after a committed transfer; mutated only under an exclusive row lock.
type CashBalance struct {
	UserUID   uuid.UUID       `json:"user_uid"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// QuantityBalance is a user's holding of one instrument. Same invariants
// and mutation discipline as CashBalance.
type QuantityBalance struct {
	UserUID       uuid.UUID       `json:"user_uid"`
	InstrumentUID uuid.UUID       `json:"instrument_uid"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
