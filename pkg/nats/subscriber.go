package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ai-digest-bot/pkg/events"

	"github.com/nats-io/nats.go/jetstream"
)

// ChatHandler receives one decoded inbound chat message. A returned error
// naks the message for redelivery.
type ChatHandler func(ctx context.Context, msg events.ChatMessage) error

// Subscriber consumes inbound chat messages with a durable consumer.
type Subscriber struct {
	conn    *Conn
	consume jetstream.ConsumeContext
}

func NewSubscriber(conn *Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeChat starts delivering chat.inbound.> to handler until Stop.
func (s *Subscriber) SubscribeChat(ctx context.Context, durableName string, handler ChatHandler) error {
	consumer, err := s.conn.js.CreateOrUpdateConsumer(ctx, ChatStream, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: InboundSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		MaxDeliver:    3,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(m jetstream.Msg) {
		var msg events.ChatMessage
		if err := json.Unmarshal(m.Data(), &msg); err != nil {
			log.Printf("Error unmarshalling chat message on %s: %v", m.Subject(), err)
			// Malformed payloads will never parse; drop them.
			_ = m.Term()
			return
		}

		// A reply to this id could not be routed back.
		if err := ValidateChannelID(msg.ChannelId); err != nil {
			log.Printf("Dropping chat message on %s: %v", m.Subject(), err)
			_ = m.Term()
			return
		}

		if err := handler(ctx, msg); err != nil {
			log.Printf("Handler failed for %s: %v", m.Subject(), err)
			_ = m.Nak()
			return
		}
		_ = m.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	s.consume = cc
	log.Printf("Subscribed to %s with durable %s", InboundSubjects, durableName)
	return nil
}

func (s *Subscriber) Stop() {
	if s.consume != nil {
		s.consume.Stop()
	}
}
