package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/entity"
	"ai-digest-bot/internal/service"
	"ai-digest-bot/pkg/store"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type echoChat struct {
	service.IChatService
	seen []dto.InboundMessage
}

func (e *echoChat) HandleMessage(_ context.Context, msg dto.InboundMessage) *dto.ChatReplyResponse {
	e.seen = append(e.seen, msg)
	switch strings.TrimSpace(msg.Content) {
	case "":
		return &dto.ChatReplyResponse{Kind: dto.ReplyKindIgnored}
	case "reset":
		return &dto.ChatReplyResponse{Kind: dto.ReplyKindReset, Content: "History cleared."}
	}
	return &dto.ChatReplyResponse{Kind: dto.ReplyKindAnswer, Content: "echo " + msg.Content}
}

func (e *echoChat) History(string) []store.Turn { return nil }

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "run-once", "chat", "pipelines"}, names)
}

func TestRunOnce_RequiresPipelineName(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run-once"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}

func TestChatLoop(t *testing.T) {
	chat := &echoChat{}
	var out bytes.Buffer

	err := chatLoop(context.Background(), chat, "c1", strings.NewReader("hello\n\nreset\n"), &out)
	require.NoError(t, err)

	require.Len(t, chat.seen, 3)
	assert.Equal(t, "c1", chat.seen[0].ChannelId)
	assert.NotEqual(t, chat.seen[0].MessageId, chat.seen[1].MessageId)
	assert.Contains(t, out.String(), "echo hello")
	assert.Contains(t, out.String(), "History cleared.")
}

func TestPrintRun(t *testing.T) {
	var out bytes.Buffer
	printRun(&out, &dto.PipelineRunResponse{
		Pipeline:  "news",
		Status:    entity.RunStatusFailed,
		ItemCount: 3,
		Warnings:  []string{"rss:a: timeout"},
		ErrorKind: "delivery",
		Error:     "status 500",
	})

	s := out.String()
	assert.Contains(t, s, "FAILED news (3 items")
	assert.Contains(t, s, "warning: rss:a: timeout")
	assert.Contains(t, s, "delivery error: status 500")

	out.Reset()
	printRun(&out, nil)
	assert.Empty(t, out.String())
}
