package exchange

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade records one pairing between a buy and a sell order. The price is
// always the resting order's limit price.
type Trade struct {
	ID            uuid.UUID       `json:"id"`
	InstrumentUID uuid.UUID       `json:"instrument_uid"`
	BuyOrderUID   uuid.UUID       `json:"buy_order_uid"`
	SellOrderUID  uuid.UUID       `json:"sell_order_uid"`
	BuyerUID      uuid.UUID       `json:"buyer_uid"`
	SellerUID     uuid.UUID       `json:"seller_uid"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	ExecutedAt    time.Time       `json:"executed_at"`
}
