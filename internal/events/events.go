package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Kind names a todo lifecycle transition.
type Kind string

const (
	KindCreated   Kind = "created"
	KindUpdated   Kind = "updated"
	KindCommented Kind = "commented"
	KindCompleted Kind = "completed"
	KindDeleted   Kind = "deleted"
)

// Subject returns the NATS subject an event kind is published on.
func Subject(k Kind) string {
	return "uptrack.todo." + string(k)
}

// Event is the payload published for each lifecycle transition.
type Event struct {
	Kind    Kind      `json:"kind"`
	TodoID  string    `json:"todoId"`
	OwnerID string    `json:"ownerId"`
	Actor   string    `json:"actor"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events as JSON on core NATS.
type NATSPublisher struct {
	conn conn
	nc   *nats.Conn
}

// Connect dials url and keeps reconnecting in the background.
func Connect(url string, log zerolog.Logger) (*NATSPublisher, error) {
	log = log.With().Str("component", "events").Logger()
	nc, err := nats.Connect(url,
		nats.Name("uptrack"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: nc, nc: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(Subject(e.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", Subject(e.Kind), err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
