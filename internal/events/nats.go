package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dusk-indust/elicit/internal/sequencer"
)

var _ Publisher = (*NATSPublisher)(nil)

// NATSConfig configures a NATSPublisher.
type NATSConfig struct {
	URL     string
	Subject string // subject prefix, e.g. "elicit.progress"

	// Stream, when set, makes publishes durable: a JetStream stream of that
	// name is created over "<Subject>.>" and every event is acknowledged.
	Stream string
}

// NATSPublisher publishes sequencer events as JSON.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher connects to NATS and, when cfg.Stream is set, ensures
// the backing JetStream stream exists.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("events: nats url is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = "elicit.progress"
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("elicit"))
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats: %w", err)
	}
	p := &NATSPublisher{conn: conn, subject: cfg.Subject}

	if cfg.Stream != "" {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("events: create jetstream context: %w", err)
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:        cfg.Stream,
			Description: "Generation progress events",
			Subjects:    []string{cfg.Subject + ".>"},
			MaxAge:      24 * time.Hour,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("events: create stream %s: %w", cfg.Stream, err)
		}
		p.js = js
	}

	slog.Info("NATS publisher initialized",
		"url", cfg.URL,
		"subject", cfg.Subject,
		"stream", cfg.Stream)
	return p, nil
}

// Publish sends ev on its project subject.
func (p *NATSPublisher) Publish(ctx context.Context, ev sequencer.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	subject := Subject(p.subject, ev)
	if p.js != nil {
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("events: publish %s: %w", subject, err)
		}
		return nil
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("events: drain: %w", err)
	}
	return nil
}
