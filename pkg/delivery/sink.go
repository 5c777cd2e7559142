package delivery

import (
	"context"

	"ai-digest-bot/pkg/store"
)

// Sink posts one payload to a fixed destination. Sinks never retry.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, payload store.DeliveryPayload) error
}
