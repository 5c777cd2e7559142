package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-digest-bot/pkg/events"
)

// Publisher sends system events to the EVENTS stream.
type Publisher struct {
	conn *Conn
}

func NewPublisher(conn *Conn) *Publisher {
	return &Publisher{conn: conn}
}

func EventSubject(eventType string) string {
	return "events." + eventType
}

// Publish sends event on events.<type>.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := EventSubject(event.EventType())
	if _, err := p.conn.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}
