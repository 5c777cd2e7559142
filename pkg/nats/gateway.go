package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"ai-digest-bot/pkg/events"
)

var ErrInvalidChannelID = errors.New("invalid channel id")

// Gateway writes replies and typing signals back to the chat bridge.
type Gateway struct {
	conn *Conn
}

func NewGateway(conn *Conn) *Gateway {
	return &Gateway{conn: conn}
}

// ValidateChannelID rejects ids that would not form a single subject token.
func ValidateChannelID(channelID string) error {
	if channelID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidChannelID)
	}
	if strings.ContainsAny(channelID, ".*>") || strings.IndexFunc(channelID, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidChannelID, channelID)
	}
	return nil
}

func OutboundSubject(channelID string) (string, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return "", err
	}
	return "chat.outbound." + channelID, nil
}

func TypingSubject(channelID string) (string, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return "", err
	}
	return "chat.typing." + channelID, nil
}

// Reply publishes to the CHAT stream so the bridge can pick it up after a
// reconnect.
func (g *Gateway) Reply(ctx context.Context, reply events.ChatReply) error {
	subject, err := OutboundSubject(reply.ChannelId)
	if err != nil {
		return err
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	if _, err := g.conn.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}
	return nil
}

// SendTyping is a core NATS publish; a missed typing signal has no value
// later.
func (g *Gateway) SendTyping(_ context.Context, channelID string) error {
	subject, err := TypingSubject(channelID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(events.Typing{ChannelId: channelID})
	if err != nil {
		return err
	}
	return g.conn.nc.Publish(subject, data)
}
