package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"main/internal/config"
	exchange "main/internal/domain/entity/exchange"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher fans executed trades out to a RabbitMQ exchange. Trades are
// buffered and flushed in batches so a matching pass never waits on the
// broker.
type Publisher struct {
	cfg    config.RabbitMQConfig
	logger *logrus.Entry

	conn    *amqp.Connection
	channel *amqp.Channel
	batcher *batchBuffer[exchange.Trade]
}

// NewPublisher prepares a publisher for the given configuration.
func NewPublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger.WithField("component", "trade_publisher"),
	}
	p.batcher = newBatchBuffer(BatchConfig{
		Size:    cfg.BatchSize,
		Timeout: cfg.BatchTimeout,
	}, p.flush, p.logger)
	return p, nil
}

// Start establishes the AMQP connection and declares the trades exchange.
func (p *Publisher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := channel.ExchangeDeclare(p.cfg.TradesExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.cfg.TradesExchange, err)
	}
	p.conn = conn
	p.channel = channel
	p.batcher.setContext(ctx)
	p.logger.WithField("exchange", p.cfg.TradesExchange).Info("trade publisher started")
	return nil
}

// PublishTrades enqueues trades for batched delivery.
func (p *Publisher) PublishTrades(ctx context.Context, trades []exchange.Trade) error {
	var errs []error
	for _, trade := range trades {
		if err := p.batcher.enqueue(trade); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop flushes the remaining buffer and closes the connection.
func (p *Publisher) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.batcher.setContext(ctx)
	err := p.batcher.drain(ctx)
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	return err
}

func (p *Publisher) flush(ctx context.Context, batch []exchange.Trade) error {
	if p.channel == nil {
		return errors.New("trade publisher is not started")
	}
	for _, trade := range batch {
		body, err := json.Marshal(TradeMessage{Trade: &trade})
		if err != nil {
			return fmt.Errorf("marshal trade %s: %w", trade.ID, err)
		}
		if err := p.channel.PublishWithContext(ctx, p.cfg.TradesExchange, "", false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		}); err != nil {
			return fmt.Errorf("publish trade %s: %w", trade.ID, err)
		}
	}
	return nil
}
