package llm

import (
	"context"
	"errors"
	"time"

	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/utils"
)

// SynthesisRequest bounds one generative call on both sides.
type SynthesisRequest struct {
	// Instruction is the fixed system-level directive.
	Instruction string
	Messages    []Message
	// MaxOutputTokens is passed to the model and must be positive.
	MaxOutputTokens int
	// MaxOutputChars cuts the returned text; 0 disables.
	MaxOutputChars int
	// MaxInputChars cuts each message before sending; 0 disables.
	MaxInputChars int
	// Model and Temperature are left to the provider when zero.
	Model       string
	Temperature float64
}

// Synthesizer wraps a provider with a timeout and the error policy of the
// pipeline: transport failures and empty output both become
// *apperror.SynthesisError.
type Synthesizer struct {
	provider LLMProvider
	timeout  time.Duration
}

func NewSynthesizer(provider LLMProvider, timeout time.Duration) *Synthesizer {
	return &Synthesizer{provider: provider, timeout: timeout}
}

func (s *Synthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (string, error) {
	if req.MaxOutputTokens <= 0 {
		return "", apperror.NewSynthesisError("output budget must be positive", nil)
	}
	if len(req.Messages) == 0 {
		return "", apperror.NewSynthesisError("no input messages", nil)
	}

	messages := req.Messages
	if req.MaxInputChars > 0 {
		messages = make([]Message, len(req.Messages))
		for i, m := range req.Messages {
			messages[i] = Message{Role: m.Role, Content: utils.Truncate(m.Content, req.MaxInputChars)}
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	opts := []Option{WithSystem(req.Instruction), WithMaxTokens(req.MaxOutputTokens)}
	if req.Model != "" {
		opts = append(opts, WithModel(req.Model))
	}
	if req.Temperature > 0 {
		opts = append(opts, WithTemperature(req.Temperature))
	}

	resp, err := s.provider.Chat(ctx, messages, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperror.NewSynthesisError("model call timed out", err)
		}
		return "", apperror.NewSynthesisError("model call failed", err)
	}

	text := resp.Text()
	if text == "" {
		return "", apperror.NewSynthesisError("no text segments", apperror.ErrEmptyOutput)
	}
	if req.MaxOutputChars > 0 {
		text = utils.Truncate(text, req.MaxOutputChars)
	}
	return text, nil
}
