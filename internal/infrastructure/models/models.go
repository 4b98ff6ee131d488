// Package models defines the relational schema as gorm models. The
// migrate command AutoMigrates them; the pgx repositories address the
// same tables with raw SQL.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	UID          uuid.UUID `gorm:"primaryKey;column:uid;type:uuid"`
	Email        string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (User) TableName() string { return "users" }

type Token struct {
	Value     string    `gorm:"primaryKey;column:value;type:varchar(64)"`
	UserUID   uuid.UUID `gorm:"column:user_uid;type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (Token) TableName() string { return "tokens" }

type Instrument struct {
	UID       uuid.UUID `gorm:"primaryKey;column:uid;type:uuid"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	Status    string    `gorm:"column:status;type:varchar(30);not null;default:active"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (Instrument) TableName() string { return "instruments" }

type Order struct {
	UID               uuid.UUID        `gorm:"primaryKey;column:uid;type:uuid"`
	UserUID           uuid.UUID        `gorm:"column:user_uid;type:uuid;not null;index"`
	InstrumentUID     uuid.UUID        `gorm:"column:instrument_uid;type:uuid;not null;index:idx_orders_book"`
	Side              string           `gorm:"column:side;type:varchar(15);not null;index:idx_orders_book"`
	Status            string           `gorm:"column:status;type:varchar(30);not null;index:idx_orders_book"`
	Price             decimal.Decimal  `gorm:"column:price;type:numeric(20,8);not null"`
	SettlementPrice   *decimal.Decimal `gorm:"column:settlement_price;type:numeric(20,8)"`
	TotalQuantity     decimal.Decimal  `gorm:"column:total_quantity;type:numeric(20,8);not null"`
	RemainingQuantity decimal.Decimal  `gorm:"column:remaining_quantity;type:numeric(20,8);not null"`
	Seq               int64            `gorm:"column:seq;autoIncrement;uniqueIndex"`
	CreatedAt         time.Time        `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (Order) TableName() string { return "orders" }

type CashBalance struct {
	UserUID   uuid.UUID       `gorm:"primaryKey;column:user_uid;type:uuid"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(20,8);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (CashBalance) TableName() string { return "cash_balances" }

type QuantityBalance struct {
	UserUID       uuid.UUID       `gorm:"primaryKey;column:user_uid;type:uuid"`
	InstrumentUID uuid.UUID       `gorm:"primaryKey;column:instrument_uid;type:uuid;index"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,8);not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (QuantityBalance) TableName() string { return "quantity_balances" }

type Trade struct {
	ID            uuid.UUID       `gorm:"primaryKey;column:id;type:uuid"`
	InstrumentUID uuid.UUID       `gorm:"column:instrument_uid;type:uuid;not null;index"`
	BuyOrderUID   uuid.UUID       `gorm:"column:buy_order_uid;type:uuid;not null"`
	SellOrderUID  uuid.UUID       `gorm:"column:sell_order_uid;type:uuid;not null"`
	BuyerUID      uuid.UUID       `gorm:"column:buyer_uid;type:uuid;not null"`
	SellerUID     uuid.UUID       `gorm:"column:seller_uid;type:uuid;not null"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:numeric(20,8);not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(20,8);not null"`
	ExecutedAt    time.Time       `gorm:"column:executed_at;type:timestamptz;not null;index"`
}

func (Trade) TableName() string { return "trades" }

type PriceHistory struct {
	ID            int64           `gorm:"primaryKey;column:id;autoIncrement"`
	InstrumentUID uuid.UUID       `gorm:"column:instrument_uid;type:uuid;not null;index"`
	RunUID        uuid.UUID       `gorm:"column:run_uid;type:uuid;not null;index"`
	Value         decimal.Decimal `gorm:"column:value;type:numeric(20,8);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
}

func (PriceHistory) TableName() string { return "price_history" }

type LiquidityHistory struct {
	ID            int64           `gorm:"primaryKey;column:id;autoIncrement"`
	InstrumentUID uuid.UUID       `gorm:"column:instrument_uid;type:uuid;not null;index"`
	RunUID        uuid.UUID       `gorm:"column:run_uid;type:uuid;not null;index"`
	Value         decimal.Decimal `gorm:"column:value;type:numeric(20,8);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
}

func (LiquidityHistory) TableName() string { return "liquidity_history" }

type InventoryHistory struct {
	ID            int64           `gorm:"primaryKey;column:id;autoIncrement"`
	InstrumentUID uuid.UUID       `gorm:"column:instrument_uid;type:uuid;not null;index"`
	RunUID        uuid.UUID       `gorm:"column:run_uid;type:uuid;not null;index"`
	Value         decimal.Decimal `gorm:"column:value;type:numeric(20,8);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
}

func (InventoryHistory) TableName() string { return "inventory_history" }

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Token{},
		&Instrument{},
		&Order{},
		&CashBalance{},
		&QuantityBalance{},
		&Trade{},
		&PriceHistory{},
		&LiquidityHistory{},
		&InventoryHistory{},
	}
}
