package service

import (
	"context"
	"errors"
	"strings"

	"ai-digest-bot/internal/constant"
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/pkg/logger"
	"ai-digest-bot/internal/repository/memory"
	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/llm"
	"ai-digest-bot/pkg/store"
	"ai-digest-bot/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const chatModule = "ChatService"

// TypingNotifier shows a typing indicator in a channel. Failures are
// ignored by the caller.
type TypingNotifier interface {
	SendTyping(ctx context.Context, channelID string) error
}

type IChatService interface {
	// HandleMessage always returns a reply for a qualifying message; the
	// reply kind is ReplyKindIgnored when the message does not qualify.
	HandleMessage(ctx context.Context, msg dto.InboundMessage) *dto.ChatReplyResponse
	Reset(channelID string)
	History(channelID string) []store.Turn
}

type ChatOptions struct {
	AllowedChannelID string
	ResetCommand     string
	MaxTurns         int
	MaxOutputTokens  int
	ReplyCharLimit   int
	SystemPrompt     string
}

type chatService struct {
	synthesizer *llm.Synthesizer
	window      *memory.WindowRepository[store.Turn]
	typing      TypingNotifier
	logger      logger.ILogger
	tracer      trace.Tracer
	opts        ChatOptions
}

// NewChatService builds the conversational pipeline. window must have a
// capacity of 2 * MaxTurns; typing may be nil.
func NewChatService(
	synthesizer *llm.Synthesizer,
	window *memory.WindowRepository[store.Turn],
	typing TypingNotifier,
	log logger.ILogger,
	opts ChatOptions,
) IChatService {
	if opts.ResetCommand == "" {
		opts.ResetCommand = constant.DefaultResetCommand
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = store.DefaultMaxTurns
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 400
	}
	if opts.ReplyCharLimit <= 0 {
		opts.ReplyCharLimit = 1900
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = constant.ChatSystemPromptV1
	}
	if window == nil {
		window = memory.NewWindowRepository[store.Turn](2 * opts.MaxTurns)
	}

	return &chatService{
		synthesizer: synthesizer,
		window:      window,
		typing:      typing,
		logger:      log,
		tracer:      otel.Tracer("ai-digest-bot/chat"),
		opts:        opts,
	}
}

func (s *chatService) qualifies(msg dto.InboundMessage, text string) bool {
	if msg.IsBot || text == "" {
		return false
	}
	return s.opts.AllowedChannelID == "" || msg.ChannelId == s.opts.AllowedChannelID
}

func (s *chatService) HandleMessage(ctx context.Context, msg dto.InboundMessage) *dto.ChatReplyResponse {
	text := strings.TrimSpace(msg.Content)
	key := msg.ChannelId

	if !s.qualifies(msg, text) {
		return &dto.ChatReplyResponse{ChannelId: key, Kind: dto.ReplyKindIgnored}
	}

	ctx, span := s.tracer.Start(ctx, "chat.message", trace.WithAttributes(attribute.String("channel_id", key)))
	defer span.End()

	unlock := s.window.Lock(key)
	defer unlock()

	if strings.EqualFold(text, s.opts.ResetCommand) {
		s.window.Reset(key)
		s.logger.Info(chatModule, "Conversation window reset", map[string]interface{}{"channel_id": key})
		return s.reply(key, dto.ReplyKindReset, constant.ResetAcknowledgement)
	}

	userTurn := store.Turn{Role: store.RoleUser, Content: text}
	history := append(s.window.Get(key), userTurn)
	if over := len(history) - s.window.Capacity(); over > 0 {
		history = history[over:]
	}

	if s.typing != nil {
		if err := s.typing.SendTyping(ctx, key); err != nil {
			s.logger.Debug(chatModule, "Typing indicator failed", map[string]interface{}{"channel_id": key, "error": err.Error()})
		}
	}

	messages := make([]llm.Message, len(history))
	for i, t := range history {
		messages[i] = llm.Message{Role: string(t.Role), Content: t.Content}
	}

	answer, err := s.synthesize(ctx, messages)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, apperror.ErrEmptyOutput) {
			s.logger.Warn(chatModule, "Model returned no text", map[string]interface{}{"channel_id": key})
			return s.reply(key, dto.ReplyKindNoText, constant.NoTextReply)
		}
		s.logger.Error(chatModule, "Conversation run failed", map[string]interface{}{
			"channel_id": key, "message_id": msg.MessageId, "error": err.Error(),
		})
		return s.reply(key, dto.ReplyKindError, constant.ErrorReplyPrefix+err.Error())
	}

	s.window.Append(key, userTurn, store.Turn{Role: store.RoleAssistant, Content: answer})
	return s.reply(key, dto.ReplyKindAnswer, answer)
}

func (s *chatService) synthesize(ctx context.Context, messages []llm.Message) (string, error) {
	if s.synthesizer == nil {
		return "", apperror.NewSynthesisError("no model configured", nil)
	}
	return s.synthesizer.Synthesize(ctx, llm.SynthesisRequest{
		Instruction:     s.opts.SystemPrompt,
		Messages:        messages,
		MaxOutputTokens: s.opts.MaxOutputTokens,
	})
}

func (s *chatService) reply(key, kind, content string) *dto.ChatReplyResponse {
	return &dto.ChatReplyResponse{
		ChannelId: key,
		Kind:      kind,
		Content:   utils.Truncate(content, s.opts.ReplyCharLimit),
		Turns:     s.window.Len(key),
	}
}

func (s *chatService) Reset(channelID string) {
	unlock := s.window.Lock(channelID)
	defer unlock()
	s.window.Reset(channelID)
}

func (s *chatService) History(channelID string) []store.Turn {
	return s.window.Get(channelID)
}
