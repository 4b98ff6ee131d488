package broker

import (
	"main/internal/domain/entity/exchange"
)

// TradeMessage is the wire envelope published to the trade feed exchange.
type TradeMessage struct {
	Trade *exchange.Trade `json:"trade,omitempty"`
}
