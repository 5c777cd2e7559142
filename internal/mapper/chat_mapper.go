package mapper

import (
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/pkg/events"
	"ai-digest-bot/pkg/store"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) EventToInbound(e events.ChatMessage) dto.InboundMessage {
	return dto.InboundMessage{
		MessageId: e.MessageId,
		ChannelId: e.ChannelId,
		AuthorId:  e.AuthorId,
		Author:    e.Author,
		Content:   e.Content,
		IsBot:     e.IsBot,
	}
}

// ReplyToEvent returns false for replies that must not be sent.
func (m *ChatMapper) ReplyToEvent(r *dto.ChatReplyResponse, replyTo string) (events.ChatReply, bool) {
	if r == nil || r.Kind == dto.ReplyKindIgnored || r.Content == "" {
		return events.ChatReply{}, false
	}
	return events.ChatReply{
		ChannelId:     r.ChannelId,
		ReplyTo:       replyTo,
		Content:       r.Content,
		MentionPolicy: string(store.MentionSuppressAll),
	}, true
}
