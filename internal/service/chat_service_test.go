package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-digest-bot/internal/constant"
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/pkg/logger"
	"ai-digest-bot/internal/repository/memory"
	"ai-digest-bot/pkg/llm"
	"ai-digest-bot/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatFixture(t *testing.T, opts ChatOptions) (IChatService, *fakeProvider, *fakeTyping, *memory.WindowRepository[store.Turn]) {
	t.Helper()
	if opts.MaxTurns == 0 {
		opts.MaxTurns = store.DefaultMaxTurns
	}
	provider := &fakeProvider{reply: "hello back"}
	typing := &fakeTyping{}
	window := memory.NewWindowRepository[store.Turn](2 * opts.MaxTurns)
	svc := NewChatService(llm.NewSynthesizer(provider, time.Second), window, typing, logger.NewNopLogger(), opts)
	return svc, provider, typing, window
}

func msg(channel, content string) dto.InboundMessage {
	return dto.InboundMessage{MessageId: "m1", ChannelId: channel, Author: "ana", Content: content}
}

func TestChat_AnswersAndRemembers(t *testing.T) {
	svc, provider, typing, _ := newChatFixture(t, ChatOptions{})

	reply := svc.HandleMessage(context.Background(), msg("c1", "  hi there "))
	assert.Equal(t, dto.ReplyKindAnswer, reply.Kind)
	assert.Equal(t, "hello back", reply.Content)
	assert.Equal(t, 2, reply.Turns)

	require.Equal(t, 1, provider.Calls())
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi there"}}, provider.gotMsgs[0])
	assert.Equal(t, constant.ChatSystemPromptV1, provider.gotOpts[0].System)
	assert.Equal(t, 400, provider.gotOpts[0].MaxTokens)
	assert.Equal(t, []string{"c1"}, typing.channels)

	svc.HandleMessage(context.Background(), msg("c1", "again"))
	require.Equal(t, 2, provider.Calls())
	assert.Len(t, provider.gotMsgs[1], 3)
	assert.Equal(t, []store.Turn{
		{Role: store.RoleUser, Content: "hi there"},
		{Role: store.RoleAssistant, Content: "hello back"},
		{Role: store.RoleUser, Content: "again"},
		{Role: store.RoleAssistant, Content: "hello back"},
	}, svc.History("c1"))
}

func TestChat_IgnoresNonQualifyingMessages(t *testing.T) {
	svc, provider, _, _ := newChatFixture(t, ChatOptions{AllowedChannelID: "allowed"})

	bot := msg("allowed", "hello")
	bot.IsBot = true

	for name, m := range map[string]dto.InboundMessage{
		"bot author":    bot,
		"blank content": msg("allowed", "   \n "),
		"other channel": msg("elsewhere", "hello"),
	} {
		reply := svc.HandleMessage(context.Background(), m)
		assert.Equal(t, dto.ReplyKindIgnored, reply.Kind, name)
		assert.Empty(t, reply.Content, name)
	}
	assert.Zero(t, provider.Calls())
}

func TestChat_ResetClearsWindowWithoutModelCall(t *testing.T) {
	svc, provider, _, window := newChatFixture(t, ChatOptions{})
	window.Append("c1",
		store.Turn{Role: store.RoleUser, Content: "a"},
		store.Turn{Role: store.RoleAssistant, Content: "b"},
		store.Turn{Role: store.RoleUser, Content: "c"},
	)

	reply := svc.HandleMessage(context.Background(), msg("c1", " RESET "))
	assert.Equal(t, dto.ReplyKindReset, reply.Kind)
	assert.Equal(t, constant.ResetAcknowledgement, reply.Content)
	assert.Zero(t, provider.Calls())
	assert.Empty(t, svc.History("c1"))

	svc.HandleMessage(context.Background(), msg("c1", "fresh start"))
	require.Equal(t, 1, provider.Calls())
	assert.Len(t, provider.gotMsgs[0], 1, "the next turn starts a new window")
}

func TestChat_ResetIsExactMatchOnly(t *testing.T) {
	svc, provider, _, _ := newChatFixture(t, ChatOptions{})

	reply := svc.HandleMessage(context.Background(), msg("c1", "please reset"))
	assert.Equal(t, dto.ReplyKindAnswer, reply.Kind)
	assert.Equal(t, 1, provider.Calls())
}

func TestChat_EmptyModelOutputRepliesNotice(t *testing.T) {
	svc, provider, _, _ := newChatFixture(t, ChatOptions{})
	provider.reply = ""

	reply := svc.HandleMessage(context.Background(), msg("c1", "hello"))
	assert.Equal(t, dto.ReplyKindNoText, reply.Kind)
	assert.Equal(t, constant.NoTextReply, reply.Content)
	assert.Empty(t, svc.History("c1"))
}

func TestChat_ModelErrorRepliesWithError(t *testing.T) {
	svc, provider, typing, _ := newChatFixture(t, ChatOptions{})
	provider.err = errBoom
	typing.err = errBoom

	reply := svc.HandleMessage(context.Background(), msg("c1", "hello"))
	assert.Equal(t, dto.ReplyKindError, reply.Kind)
	assert.True(t, strings.HasPrefix(reply.Content, constant.ErrorReplyPrefix))
	assert.Contains(t, reply.Content, "boom")
	assert.Empty(t, svc.History("c1"))
}

func TestChat_ReplyIsBoundedByTransportLimit(t *testing.T) {
	svc, provider, _, _ := newChatFixture(t, ChatOptions{ReplyCharLimit: 1900})
	provider.reply = strings.Repeat("é", 5000)

	reply := svc.HandleMessage(context.Background(), msg("c1", "long please"))
	assert.Equal(t, 1900, len([]rune(reply.Content)))
}

func TestChat_WindowNeverExceedsCap(t *testing.T) {
	svc, provider, _, _ := newChatFixture(t, ChatOptions{MaxTurns: 2})

	for i := 0; i < 5; i++ {
		svc.HandleMessage(context.Background(), msg("c1", fmt.Sprintf("q%d", i)))
	}
	history := svc.History("c1")
	require.Len(t, history, 4)
	assert.Equal(t, "q3", history[0].Content)
	assert.Equal(t, "q4", history[2].Content)

	last := provider.gotMsgs[len(provider.gotMsgs)-1]
	assert.LessOrEqual(t, len(last), 4)
	assert.Equal(t, "q4", last[len(last)-1].Content)
}

func TestChat_ConcurrentMessagesOnOneKeyKeepPairs(t *testing.T) {
	svc, provider, _, _ := newChatFixture(t, ChatOptions{MaxTurns: 50})
	provider.delay = time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.HandleMessage(context.Background(), msg("c1", fmt.Sprintf("q%d", i)))
		}(i)
	}
	wg.Wait()

	history := svc.History("c1")
	require.Len(t, history, 20)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, store.RoleUser, history[i].Role)
		assert.Equal(t, store.RoleAssistant, history[i+1].Role)
	}
}

func TestChat_KeysAreIsolated(t *testing.T) {
	svc, _, _, _ := newChatFixture(t, ChatOptions{})

	svc.HandleMessage(context.Background(), msg("c1", "one"))
	svc.HandleMessage(context.Background(), msg("c2", "two"))
	svc.Reset("c1")

	assert.Empty(t, svc.History("c1"))
	assert.Len(t, svc.History("c2"), 2)
}
