package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/metrics"
	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// NATSPublisher publishes one TradeDisclosedEvent per new trade on JetStream.
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	service string
	logger  *zap.Logger
	now     func() time.Time
}

// NewNATSPublisher connects to url and ensures a stream covering subject exists.
func NewNATSPublisher(url, stream, subject, service string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url, nats.Name(service))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if stream != "" {
		if _, err := js.StreamInfo(stream); err != nil {
			_, err = js.AddStream(&nats.StreamConfig{
				Name:     stream,
				Subjects: []string{subject},
				Storage:  nats.FileStorage,
			})
			if err != nil {
				nc.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", stream, err)
			}
			logger.Info("nats.stream_created", zap.String("stream", stream), zap.String("subject", subject))
		}
	}

	return &NATSPublisher{nc: nc, js: js, subject: subject, service: service, logger: logger, now: time.Now}, nil
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Notify(_ context.Context, runID string, trades []model.Trade) error {
	for _, evt := range BuildEvents(runID, trades, p.now()) {
		if err := p.publish(evt); err != nil {
			return err
		}
	}
	return nil
}

func (p *NATSPublisher) publish(evt model.TradeDisclosedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		metrics.IncError("nats", "marshal_failed")
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{"politician_trade.disclosed"},
			"run_id":       []string{evt.RunID},
			"fingerprint":  []string{evt.Fingerprint},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
		},
	}
	// JetStream drops duplicate message ids inside its dedup window.
	msg.Header.Set(nats.MsgIdHdr, evt.Fingerprint)

	if _, err := p.js.PublishMsg(msg); err != nil {
		p.logger.Error("nats.publish_failed",
			zap.String("subject", p.subject),
			zap.String("fingerprint", evt.Fingerprint),
			zap.Error(err))
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}

	p.logger.Debug("nats.published",
		zap.String("subject", p.subject),
		zap.String("fingerprint", evt.Fingerprint))
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
