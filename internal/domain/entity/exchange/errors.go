package exchange

import "errors"

// Error kinds shared by every ledger implementation. Any of them raised
// inside a matching pass aborts the whole pass with nothing committed.
var (
	ErrInvalidInstrument    = errors.New("instrument does not accept orders")
	ErrInstrumentNotFound   = errors.New("instrument not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientCash     = errors.New("insufficient cash balance")
	ErrInsufficientQuantity = errors.New("insufficient instrument balance")
	ErrMissingBalance       = errors.New("balance record not found")
	ErrLockTimeout          = errors.New("lock acquisition timed out")
)
