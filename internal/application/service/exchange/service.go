package exchange

import (
	"context"
	"errors"
	"time"

	"main/internal/config"
	domain "main/internal/domain/entity/exchange"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidSide         = errors.New("order side must be buy or sell")
	ErrNonPositivePrice    = errors.New("order price must be positive")
	ErrNonPositiveQuantity = errors.New("order quantity must be positive")
	ErrNegativeAmount      = errors.New("balance amount must not be negative")
)

// TradeSink receives the trades a committed matching pass produced.
type TradeSink interface {
	PublishTrades(ctx context.Context, trades []domain.Trade) error
}

// Service runs matching passes and serves market statistics.
type Service struct {
	ledger      interfaces.LedgerRepository
	instruments interfaces.InstrumentsRepository
	sink        TradeSink
	logger      *logrus.Entry

	lockTimeout time.Duration
	mmMarker    string
}

// NewService wires the matching engine over a ledger store. sink may be
// nil when no trade feed is configured.
func NewService(ledger interfaces.LedgerRepository, instruments interfaces.InstrumentsRepository, cfg config.MatchingConfig, sink TradeSink, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		ledger:      ledger,
		instruments: instruments,
		sink:        sink,
		logger:      logger.WithField("component", "exchange_service"),
		lockTimeout: cfg.LockTimeout,
		mmMarker:    cfg.MarketMakerMarker,
	}
}

// PlaceOrderRequest carries the parameters of a new limit order.
type PlaceOrderRequest struct {
	UserUID       uuid.UUID
	InstrumentUID uuid.UUID
	Side          domain.OrderSide
	Price         decimal.Decimal
	Quantity      decimal.Decimal
}

// PlaceOrder runs one matching pass for the incoming order: it fills the
// order against eligible resting counter orders and rests any remainder.
// The pass is atomic; on any error nothing is committed and the order
// does not exist.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, []domain.Trade, error) {
	if !req.Side.IsValid() {
		return nil, nil, ErrInvalidSide
	}
	if !req.Price.IsPositive() {
		return nil, nil, ErrNonPositivePrice
	}
	if !req.Quantity.IsPositive() {
		return nil, nil, ErrNonPositiveQuantity
	}

	instrument, err := s.instruments.GetInstrument(ctx, req.InstrumentUID)
	if err != nil {
		return nil, nil, err
	}
	if !instrument.AcceptsOrders() {
		return nil, nil, domain.ErrInvalidInstrument
	}

	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	order := domain.NewOrder(req.UserUID, req.InstrumentUID, req.Side, req.Price, req.Quantity, time.Now().UTC())
	trades, err := s.runMatchingPass(ctx, order)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrLockTimeout
		}
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_uid":  order.UID,
		"instrument": order.InstrumentUID,
		"side":       order.Side,
		"status":     order.Status,
		"trades":     len(trades),
	}).Info("order placed")

	if len(trades) > 0 && s.sink != nil {
		if err := s.sink.PublishTrades(ctx, trades); err != nil {
			s.logger.WithError(err).Warn("trade feed publish failed")
		}
	}
	return order, trades, nil
}

// GetOrder returns a single order by id.
func (s *Service) GetOrder(ctx context.Context, uid uuid.UUID) (*domain.Order, error) {
	return s.ledger.GetOrder(ctx, uid)
}

// ListUserOrders returns all orders owned by the user, newest first.
func (s *Service) ListUserOrders(ctx context.Context, userUID uuid.UUID) ([]*domain.Order, error) {
	return s.ledger.ListUserOrders(ctx, userUID)
}

// CancelOpenOrders flips all of the user's active orders to cancelled and
// reports how many were affected.
func (s *Service) CancelOpenOrders(ctx context.Context, userUID uuid.UUID) (int64, error) {
	return s.ledger.CancelOpenOrders(ctx, userUID)
}

// GetCashBalance returns the user's settlement-currency balance.
func (s *Service) GetCashBalance(ctx context.Context, userUID uuid.UUID) (*domain.CashBalance, error) {
	return s.ledger.GetCashBalance(ctx, userUID)
}

// SetCashBalance overwrites the user's cash balance. Used for account
// provisioning and emulation seeding, never by the matching engine.
func (s *Service) SetCashBalance(ctx context.Context, userUID uuid.UUID, amount decimal.Decimal) (*domain.CashBalance, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return s.ledger.SetCashBalance(ctx, userUID, amount)
}

// GetQuantityBalance returns the user's holding of one instrument.
func (s *Service) GetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID) (*domain.QuantityBalance, error) {
	return s.ledger.GetQuantityBalance(ctx, userUID, instrumentUID)
}

// SetQuantityBalance overwrites the user's instrument balance.
func (s *Service) SetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID, amount decimal.Decimal) (*domain.QuantityBalance, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return s.ledger.SetQuantityBalance(ctx, userUID, instrumentUID, amount)
}

// VolumeWeightedPrice returns sum(price*total)/sum(total) over all orders
// of the instrument, zero when no quantity was ever placed.
func (s *Service) VolumeWeightedPrice(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	return s.ledger.VolumeWeightedPrice(ctx, instrumentUID)
}

// LiquidityRatio returns completed volume over total volume, zero-guarded.
func (s *Service) LiquidityRatio(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	return s.ledger.LiquidityRatio(ctx, instrumentUID)
}

// MarketMakerInventory returns the most recently created quantity balance
// among market-maker accounts, zero when none exists.
func (s *Service) MarketMakerInventory(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	return s.ledger.MarketMakerInventory(ctx, instrumentUID, s.mmMarker)
}

// WriteStatsSnapshot computes the three aggregates and persists them as
// history rows tagged with runUID.
func (s *Service) WriteStatsSnapshot(ctx context.Context, instrumentUID, runUID uuid.UUID) (*domain.InstrumentStats, error) {
	vwap, err := s.VolumeWeightedPrice(ctx, instrumentUID)
	if err != nil {
		return nil, err
	}
	liquidity, err := s.LiquidityRatio(ctx, instrumentUID)
	if err != nil {
		return nil, err
	}
	inventory, err := s.MarketMakerInventory(ctx, instrumentUID)
	if err != nil {
		return nil, err
	}
	stats := &domain.InstrumentStats{
		InstrumentUID:        instrumentUID,
		VolumeWeightedPrice:  vwap,
		LiquidityRatio:       liquidity,
		MarketMakerInventory: inventory,
		ComputedAt:           time.Now().UTC(),
	}
	if err := s.ledger.InsertStatsSnapshot(ctx, runUID, stats); err != nil {
		return nil, err
	}
	return stats, nil
}
