package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCompletedPayload(t *testing.T) {
	at := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	e := RunCompleted{RunId: "r1", Pipeline: "news", Trigger: "schedule", Status: "DELIVERED", Items: 5, At: at}

	var ev Event = e
	assert.Equal(t, "run.completed", ev.EventType())
	assert.Equal(t, at, ev.Timestamp())
	assert.NotContains(t, ev.Payload(), "error_kind")

	e.Status, e.ErrorKind = "FAILED", "delivery"
	assert.Equal(t, "delivery", e.Payload()["error_kind"])
}

func TestChatMessageWireShape(t *testing.T) {
	var msg ChatMessage
	raw := `{"message_id":"m1","channel_id":"c1","author_id":"u1","author":"ana","content":"hi","is_bot":true}`
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, ChatMessage{MessageId: "m1", ChannelId: "c1", AuthorId: "u1", Author: "ana", Content: "hi", IsBot: true}, msg)

	out, err := json.Marshal(ChatReply{ChannelId: "c1", Content: "hello", MentionPolicy: "suppress-all"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel_id":"c1","content":"hello","mention_policy":"suppress-all"}`, string(out))
}
