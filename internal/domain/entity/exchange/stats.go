package exchange

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstrumentStats holds the derived market aggregates for one instrument.
// All ratios are defined as zero when the underlying volume is zero.
type InstrumentStats struct {
	InstrumentUID        uuid.UUID       `json:"instrument_uid"`
	VolumeWeightedPrice  decimal.Decimal `json:"volume_weighted_price"`
	LiquidityRatio       decimal.Decimal `json:"liquidity_ratio"`
	MarketMakerInventory decimal.Decimal `json:"market_maker_inventory"`
	ComputedAt           time.Time       `json:"computed_at"`
}
