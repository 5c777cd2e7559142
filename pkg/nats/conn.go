package nats

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	EventsStream = "EVENTS"
	ChatStream   = "CHAT"

	InboundSubjects  = "chat.inbound.>"
	OutboundSubjects = "chat.outbound.>"
)

// Conn is one NATS connection shared by the publisher, the gateway and
// the inbound subscriber.
type Conn struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS and makes sure both streams exist. A stream that
// cannot be created is logged and left to the server operator.
func Connect(url string) (*Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("ai-digest-bot"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	streams := []jetstream.StreamConfig{
		{
			Name:      EventsStream,
			Subjects:  []string{"events.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
		},
		{
			Name:      ChatStream,
			Subjects:  []string{InboundSubjects, OutboundSubjects},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    24 * time.Hour,
		},
	}
	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			log.Printf("Warn: Failed to ensure stream '%s': %v", cfg.Name, err)
		}
	}

	return &Conn{nc: nc, js: js}, nil
}

func (c *Conn) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}
