package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-digest-bot/pkg/feed"
	"ai-digest-bot/pkg/llm"
	"ai-digest-bot/pkg/store"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	gotMsgs [][]llm.Message
	gotOpts []llm.Options
	delay   time.Duration
}

func (p *fakeProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Response, error) {
	p.mu.Lock()
	p.calls++
	p.gotMsgs = append(p.gotMsgs, append([]llm.Message(nil), history...))
	p.gotOpts = append(p.gotOpts, llm.Apply(llm.Options{}, opts...))
	reply, err, delay := p.reply, p.err, p.delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &llm.Response{Segments: []llm.Segment{{Type: llm.SegmentText, Text: reply}}}, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeSource struct {
	name    string
	payload *feed.Payload
	err     error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(ctx context.Context) (*feed.Payload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

type fakeSink struct {
	mu       sync.Mutex
	errs     []error
	payloads []store.DeliveryPayload
	block    chan struct{}
	entered  chan struct{}
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Deliver(ctx context.Context, payload store.DeliveryPayload) error {
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return nil
}

func (s *fakeSink) Delivered() []store.DeliveryPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.DeliveryPayload(nil), s.payloads...)
}

type fakeTyping struct {
	mu       sync.Mutex
	channels []string
	err      error
}

func (f *fakeTyping) SendTyping(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channelID)
	return f.err
}

var errBoom = errors.New("boom")

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}
