package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/metrics"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// channelPublisher is the part of amqp.Channel used for publishing.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes operation events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel channelPublisher
	queue   string
	logger  *zap.Logger
}

// NewAMQP dials url and declares queue.
func NewAMQP(url, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, queue: queue, logger: logger}, nil
}

// Name identifies the publisher in logs and metrics.
func (p *AMQPPublisher) Name() string { return "amqp" }

// Notify publishes ev to the queue through the default exchange.
func (p *AMQPPublisher) Notify(ctx context.Context, ev model.OperationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     ev.ID.String(),
			CorrelationId: ev.OperationID,
			Type:          ev.Subject(),
			Timestamp:     ev.Timestamp,
			Body:          body,
		},
	)
	if err != nil {
		p.logger.Error("publisher.amqp_publish_failed",
			zap.String("queue", p.queue),
			zap.String("operation_id", ev.OperationID),
			zap.Error(err))
		return err
	}

	metrics.IncEventPublished(p.Name(), ev.EventType)
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	if ch, ok := p.channel.(*amqp.Channel); ok && ch != nil {
		_ = ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
