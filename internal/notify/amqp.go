package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// amqpChannel is the subset of *amqp.Channel used for publishing.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes TradeDisclosedEvents to RabbitMQ on the default exchange.
type AMQPPublisher struct {
	conn       *amqp.Connection
	channel    amqpChannel
	routingKey string
	logger     *zap.Logger
	now        func() time.Time
}

// NewAMQPPublisher dials url and declares a durable queue named after routingKey.
func NewAMQPPublisher(url, routingKey string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", routingKey, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, routingKey: routingKey, logger: logger, now: time.Now}, nil
}

func (p *AMQPPublisher) Name() string { return "amqp" }

func (p *AMQPPublisher) Notify(ctx context.Context, runID string, trades []model.Trade) error {
	for _, evt := range BuildEvents(runID, trades, p.now()) {
		body, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		err = p.channel.PublishWithContext(
			ctx,
			"",           // exchange
			p.routingKey, // routing key
			false,        // mandatory
			false,        // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    evt.ID.String(),
				Timestamp:    evt.DetectedAt,
				Type:         "politician_trade.disclosed",
				Body:         body,
			},
		)
		if err != nil {
			p.logger.Error("amqp.publish_failed",
				zap.String("routing_key", p.routingKey),
				zap.String("fingerprint", evt.Fingerprint),
				zap.Error(err))
			return fmt.Errorf("publish %s: %w", p.routingKey, err)
		}
	}

	p.logger.Debug("amqp.published",
		zap.String("routing_key", p.routingKey),
		zap.Int("events", len(trades)))
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
