package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/metrics"
	"github.com/Checker-Finance/bank-gateway/pkg/model"
)

// SubjectWildcard covers every subject produced by OperationEvent.Subject.
const SubjectWildcard = "evt.bank.>"

// msgPublisher is the part of nats.JetStreamContext used for publishing.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes operation events to a JetStream stream.
type NATSPublisher struct {
	nc      *nats.Conn
	js      msgPublisher
	service string
	logger  *zap.Logger
}

// NewNATS binds a publisher to nc, creating stream when it does not exist.
func NewNATS(nc *nats.Conn, stream, service string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if stream != "" {
		if err := ensureStream(js, stream); err != nil {
			return nil, err
		}
	}
	return &NATSPublisher{nc: nc, js: js, service: service, logger: logger}, nil
}

func ensureStream(js nats.JetStreamContext, stream string) error {
	_, err := js.StreamInfo(stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", stream, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{SubjectWildcard},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", stream, err)
	}
	return nil
}

// Name identifies the publisher in logs and metrics.
func (p *NATSPublisher) Name() string { return "nats" }

// Notify publishes ev on its subject. The event id doubles as the JetStream
// message id so redeliveries are deduplicated by the server.
func (p *NATSPublisher) Notify(_ context.Context, ev model.OperationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: ev.Subject(),
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{ev.EventType},
			"operation_id": []string{ev.OperationID},
			"operation":    []string{string(ev.Operation)},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg, nats.MsgId(ev.ID.String())); err != nil {
		p.logger.Error("publisher.nats_publish_failed",
			zap.String("subject", msg.Subject),
			zap.String("operation_id", ev.OperationID),
			zap.Error(err))
		return err
	}

	metrics.IncEventPublished(p.Name(), ev.EventType)
	p.logger.Debug("publisher.nats_publish_success",
		zap.String("subject", msg.Subject),
		zap.String("record_id", ev.RecordID))
	return nil
}

// HealthCheck reports whether the connection is up and the server answers a flush.
func (p *NATSPublisher) HealthCheck(ctx context.Context) error {
	if p.nc == nil || !p.nc.IsConnected() {
		return errors.New("nats disconnected")
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		_ = p.nc.Drain()
	}
}
