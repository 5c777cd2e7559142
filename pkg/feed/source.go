package feed

import (
	"context"

	"ai-digest-bot/pkg/store"
)

// Payload is what one source yields: mapped records, a raw signal text,
// or both.
type Payload struct {
	Records []store.NormalizedRecord
	Signal  string
}

// Source is one independently fetched input.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Payload, error)
}

// StaticSource returns a fixed structured-signal payload. It stands in
// for discussion providers that are not wired yet.
type StaticSource struct {
	Label string
	Text  string
}

func NewStaticSource(label, text string) *StaticSource {
	return &StaticSource{Label: label, Text: text}
}

func (s *StaticSource) Name() string {
	return "static:" + s.Label
}

func (s *StaticSource) Fetch(ctx context.Context) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Payload{Signal: s.Text}, nil
}
