package exchange

import (
	"time"

	domain "main/internal/domain/entity/exchange"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// executeTrade applies one pairing between the aggressor and a resting
// counter order. The trade always executes at the resting order's limit
// price; the aggressor's price only bounded eligibility. All mutations
// happen on rows the pass already holds locked, and any returned error
// must abort the enclosing pass untouched.
func executeTrade(aggressor, resting *domain.Order, balances map[uuid.UUID]*accountBalances, now time.Time) (domain.Trade, error) {
	quantity := decimal.Min(aggressor.RemainingQuantity, resting.RemainingQuantity)
	price := resting.Price
	cost := quantity.Mul(price)

	buyer, seller := aggressor, resting
	if aggressor.Side == domain.OrderSideSell {
		buyer, seller = resting, aggressor
	}

	buyerBalances := balances[buyer.UserUID]
	sellerBalances := balances[seller.UserUID]
	if buyerBalances == nil || sellerBalances == nil {
		return domain.Trade{}, domain.ErrMissingBalance
	}

	if buyerBalances.cash.Amount.LessThan(cost) {
		return domain.Trade{}, domain.ErrInsufficientCash
	}
	if sellerBalances.quantity.Amount.LessThan(quantity) {
		return domain.Trade{}, domain.ErrInsufficientQuantity
	}

	buyerBalances.quantity.Amount = buyerBalances.quantity.Amount.Add(quantity)
	sellerBalances.quantity.Amount = sellerBalances.quantity.Amount.Sub(quantity)
	buyerBalances.cash.Amount = buyerBalances.cash.Amount.Sub(cost)
	sellerBalances.cash.Amount = sellerBalances.cash.Amount.Add(cost)
	buyerBalances.cash.UpdatedAt = now
	buyerBalances.quantity.UpdatedAt = now
	sellerBalances.cash.UpdatedAt = now
	sellerBalances.quantity.UpdatedAt = now

	aggressor.Fill(quantity, price, now)
	resting.Fill(quantity, price, now)

	return domain.Trade{
		ID:            uuid.New(),
		InstrumentUID: aggressor.InstrumentUID,
		BuyOrderUID:   buyer.UID,
		SellOrderUID:  seller.UID,
		BuyerUID:      buyer.UserUID,
		SellerUID:     seller.UserUID,
		Quantity:      quantity,
		Price:         price,
		ExecutedAt:    now,
	}, nil
}
