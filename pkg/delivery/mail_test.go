package delivery

import (
	"context"
	"errors"
	"testing"

	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestMailSinkDeliver(t *testing.T) {
	sender := &fakeSender{}
	sink := NewMailSink(sender, "bot@example.com", "team@example.com", "Digest", 1900)

	require.NoError(t, sink.Deliver(context.Background(), store.DeliveryPayload{Content: "hello"}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"team@example.com"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Digest"}, sender.sent[0].GetHeader("Subject"))
}

func TestMailSinkFailureIsDeliveryError(t *testing.T) {
	sink := NewMailSink(&fakeSender{err: errors.New("smtp down")}, "a", "b", "s", 1900)

	err := sink.Deliver(context.Background(), store.DeliveryPayload{Content: "hello"})

	assert.ErrorIs(t, err, apperror.ErrDelivery)
}
