package output

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/adithya-ss/speech-to-text-app/internal/config"
)

// NATSPublisher publishes transcripts as JSON to <subject>.<kind>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	log     *zap.Logger
}

// ConnectNATS dials the configured server.
func ConnectNATS(cfg config.PublishConfig, log *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("speech-to-text"),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log = log.Named("nats")
	log.Info("connected to NATS", zap.String("url", cfg.NATSURL), zap.String("subject", cfg.Subject))

	return NewNATSPublisher(conn, cfg.Subject, log), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, subject string, log *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, log: log}
}

// Emit publishes t. Empty text is skipped.
func (p *NATSPublisher) Emit(_ context.Context, t Transcript) error {
	if t.Text == "" {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("output: marshal transcript: %w", err)
	}
	subject := p.subject + "." + string(t.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("output: publish to %s: %w", subject, err)
	}
	p.log.Debug("published transcript", zap.String("subject", subject), zap.Int("bytes", len(data)))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.log.Info("closing NATS connection")
	if err := p.conn.Drain(); err != nil {
		p.log.Warn("drain NATS connection", zap.Error(err))
	}
	p.conn.Close()
}
