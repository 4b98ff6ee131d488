package exchange

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSide represents the BUY/SELL direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) IsValid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Counter returns the side a matching order must have.
func (s OrderSide) Counter() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus is the order lifecycle state. Completed and cancelled are terminal.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a limit order resting in or passing through the book.
// RemainingQuantity only ever decreases; SettlementPrice is set once,
// by the trade that zeroes the remainder.
type Order struct {
	UID               uuid.UUID        `json:"uid"`
	UserUID           uuid.UUID        `json:"user_uid"`
	InstrumentUID     uuid.UUID        `json:"instrument_uid"`
	Side              OrderSide        `json:"side"`
	Status            OrderStatus      `json:"status"`
	Price             decimal.Decimal  `json:"price"`
	SettlementPrice   *decimal.Decimal `json:"settlement_price,omitempty"`
	TotalQuantity     decimal.Decimal  `json:"total_quantity"`
	RemainingQuantity decimal.Decimal  `json:"remaining_quantity"`
	Seq               int64            `json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewOrder builds an active order with remaining = total.
func NewOrder(userUID, instrumentUID uuid.UUID, side OrderSide, price, quantity decimal.Decimal, now time.Time) *Order {
	return &Order{
		UID:               uuid.New(),
		UserUID:           userUID,
		InstrumentUID:     instrumentUID,
		Side:              side,
		Status:            OrderStatusActive,
		Price:             price,
		TotalQuantity:     quantity,
		RemainingQuantity: quantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Fill reduces the remaining quantity and completes the order when it
// reaches zero, recording the settlement price.
func (o *Order) Fill(quantity, price decimal.Decimal, now time.Time) {
	o.RemainingQuantity = o.RemainingQuantity.Sub(quantity)
	o.UpdatedAt = now
	if o.RemainingQuantity.IsZero() {
		o.Status = OrderStatusCompleted
		settled := price
		o.SettlementPrice = &settled
	}
}

func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}
