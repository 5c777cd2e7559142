package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ai-digest-bot/internal/config"
	"ai-digest-bot/internal/constant"
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/entity"
	"ai-digest-bot/internal/pkg/logger"
	"ai-digest-bot/internal/repository/memory"
	"ai-digest-bot/internal/repository/specification"
	"ai-digest-bot/internal/runlock"
	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/delivery"
	"ai-digest-bot/pkg/events"
	"ai-digest-bot/pkg/feed"
	"ai-digest-bot/pkg/llm"
	"ai-digest-bot/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type digestFixture struct {
	svc      IDigestService
	sink     *fakeSink
	provider *fakeProvider
	runs     *memory.PipelineRunRepository
}

func newDigestFixture(t *testing.T, pc config.PipelineConfig, sources []feed.Source, opts DigestOptions) *digestFixture {
	t.Helper()
	if pc.OutputLimit == 0 {
		pc.OutputLimit = 1900
	}
	if pc.ItemLimit == 0 {
		pc.ItemLimit = 10
	}
	if pc.MaxOutputTokens == 0 {
		pc.MaxOutputTokens = 500
	}
	opts.Now = func() time.Time { return fixedNow }
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}

	f := &digestFixture{
		sink:     &fakeSink{},
		provider: &fakeProvider{reply: "synthesized"},
		runs:     memory.NewPipelineRunRepository(10),
	}
	p := &Pipeline{Config: pc, Sources: sources, Sink: f.sink, Location: time.UTC}
	f.svc = NewDigestService(
		[]*Pipeline{p},
		llm.NewSynthesizer(f.provider, time.Second),
		runlock.NewMemoryLocker(),
		f.runs,
		nil,
		logger.NewNopLogger(),
		opts,
	)
	return f
}

func rssRecords(n int, titleLen int) []store.NormalizedRecord {
	out := make([]store.NormalizedRecord, n)
	for i := range out {
		out[i] = store.NormalizedRecord{
			Title:     fmt.Sprintf("%02d %s", i, strings.Repeat("x", titleLen)),
			Link:      fmt.Sprintf("https://example.com/%d", i),
			Timestamp: ts(fmt.Sprintf("2026-10-%02dT08:00:00Z", i+1)),
		}
	}
	return out
}

func TestDigestRun_NewsRendersNewestFirst(t *testing.T) {
	src := &fakeSource{name: "rss:a", payload: &feed.Payload{Records: []store.NormalizedRecord{
		{Title: "Old", Link: "https://e.com/old", Timestamp: ts("2026-10-01T08:00:00Z")},
		{Title: "New", Link: "https://e.com/new", Timestamp: ts("2026-10-17T09:30:00Z")},
		{Title: "", Link: "https://e.com/broken"},
	}}}
	f := newDigestFixture(t, config.PipelineConfig{
		Name:        "news",
		Header:      constant.NewsHeader,
		DatedHeader: true,
	}, []feed.Source{src}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusDelivered, run.Status)
	assert.Equal(t, 2, run.ItemCount)
	assert.Equal(t, 1, run.Attempts)

	delivered := f.sink.Delivered()
	require.Len(t, delivered, 1)
	want := "📰 **News Digest** — Sun, Oct 18 2026\n\n" +
		"1. New (Oct 17, 09:30 UTC)\nhttps://e.com/new\n\n" +
		"2. Old (Oct 1, 08:00 UTC)\nhttps://e.com/old"
	assert.Equal(t, want, delivered[0].Content)
	assert.Equal(t, store.MentionSuppressAll, delivered[0].MentionPolicy)
	assert.Zero(t, f.provider.Calls())

	recorded, err := f.runs.FindAll(context.Background(), specification.ByPipeline{Name: "news"})
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, run.RunId, recorded[0].Id)
	assert.Equal(t, entity.RunStatusDelivered, recorded[0].Status)
}

func TestDigestRun_AllSourcesFail(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{Name: "news", Header: "News"}, []feed.Source{
		&fakeSource{name: "rss:a", err: errBoom},
		&fakeSource{name: "rss:b", err: errBoom},
	}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.Error(t, err)

	var ierr *apperror.IngestionError
	require.ErrorAs(t, err, &ierr)
	assert.Len(t, ierr.Failures, 2)
	assert.Equal(t, entity.RunStatusFailed, run.Status)
	assert.Equal(t, "ingestion", run.ErrorKind)
	assert.Empty(t, f.sink.Delivered(), "no delivery and no empty-notice after total ingestion failure")

	recorded, _ := f.runs.FindAll(context.Background())
	require.Len(t, recorded, 1)
	assert.Equal(t, "ingestion", recorded[0].ErrorKind)
	assert.Equal(t, []string{"rss:a", "rss:b"}, recorded[0].Details["failed_sources"])
}

func TestDigestRun_PartialFailureStillDelivers(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{Name: "news", Header: "News"}, []feed.Source{
		&fakeSource{name: "rss:a", err: errBoom},
		&fakeSource{name: "rss:b", payload: &feed.Payload{Records: rssRecords(1, 3)}},
	}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusDelivered, run.Status)
	assert.Len(t, run.Warnings, 1)
	assert.Len(t, f.sink.Delivered(), 1)
}

func TestDigestRun_NoItemsPostsNotice(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{Name: "news", Header: "News"}, []feed.Source{
		&fakeSource{name: "rss:a", payload: &feed.Payload{}},
	}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusEmpty, run.Status)

	delivered := f.sink.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, "News\n\n"+constant.NoStoriesNotice, delivered[0].Content)
}

func TestDigestRun_OversizedDigestIsCutAtLimit(t *testing.T) {
	records := rssRecords(10, 260)
	f := newDigestFixture(t, config.PipelineConfig{Name: "news", Header: "News", OutputLimit: 1900}, []feed.Source{
		&fakeSource{name: "rss:a", payload: &feed.Payload{Records: records}},
	}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{DryRun: true})
	require.NoError(t, err)
	assert.Greater(t, len([]rune(run.Content)), 0)
	assert.Equal(t, 1900, len([]rune(run.Content)))
	assert.Equal(t, 1900, run.Characters)

	_, err = f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NoError(t, err)
	delivered := f.sink.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, 1900, len([]rune(delivered[0].Content)))
}

func TestDigestRun_SynthesizesSignal(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{
		Name:         "research",
		Synthesize:   true,
		Instruction:  constant.ResearchInstructionV1,
		SystemPrompt: constant.ResearchSystemPromptV1,
		Header:       constant.ResearchHeader,
	}, []feed.Source{feed.NewStaticSource("research", "agents discuss rates")}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "research", dto.TriggerBoot, dto.RunPipelineRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusDelivered, run.Status)

	require.Equal(t, 1, f.provider.Calls())
	prompt := f.provider.gotMsgs[0][0].Content
	assert.Contains(t, prompt, "Discussion input:\nagents discuss rates")
	assert.NotContains(t, prompt, constant.InputPlaceholder)
	assert.Equal(t, constant.ResearchSystemPromptV1, f.provider.gotOpts[0].System)
	assert.Equal(t, 500, f.provider.gotOpts[0].MaxTokens)

	delivered := f.sink.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, constant.ResearchHeader+"\n\nsynthesized", delivered[0].Content)
}

func TestDigestRun_EmptySynthesisIsError(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{
		Name:        "research",
		Synthesize:  true,
		Instruction: "{{input}}",
	}, []feed.Source{feed.NewStaticSource("research", "signal")}, DigestOptions{})
	f.provider.reply = "  "

	run, err := f.svc.Run(context.Background(), "research", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrEmptyOutput))
	assert.Equal(t, "synthesis", run.ErrorKind)
	assert.Empty(t, f.sink.Delivered())
}

func TestDigestRun_RetriesOnlyRetryableDelivery(t *testing.T) {
	src := &fakeSource{name: "rss:a", payload: &feed.Payload{Records: rssRecords(1, 3)}}

	t.Run("retries 5xx", func(t *testing.T) {
		f := newDigestFixture(t, config.PipelineConfig{Name: "news"}, []feed.Source{src}, DigestOptions{DeliveryRetries: 2})
		f.sink.errs = []error{&apperror.DeliveryError{StatusCode: 503, Body: "busy"}}

		run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
		require.NoError(t, err)
		assert.Equal(t, 2, run.Attempts)
		assert.Len(t, f.sink.Delivered(), 2)
	})

	t.Run("gives up after retries", func(t *testing.T) {
		f := newDigestFixture(t, config.PipelineConfig{Name: "news"}, []feed.Source{src}, DigestOptions{DeliveryRetries: 1})
		f.sink.errs = []error{
			&apperror.DeliveryError{StatusCode: 429},
			&apperror.DeliveryError{StatusCode: 502, Body: "bad gateway"},
		}

		run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
		var derr *apperror.DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, 502, derr.StatusCode)
		assert.Equal(t, 2, run.Attempts)
		assert.Equal(t, "delivery", run.ErrorKind)
	})

	t.Run("does not retry 4xx", func(t *testing.T) {
		f := newDigestFixture(t, config.PipelineConfig{Name: "news"}, []feed.Source{src}, DigestOptions{DeliveryRetries: 3})
		f.sink.errs = []error{&apperror.DeliveryError{StatusCode: 400, Body: "bad"}}

		run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
		require.Error(t, err)
		assert.Equal(t, 1, run.Attempts)
	})

	t.Run("no retries by default", func(t *testing.T) {
		f := newDigestFixture(t, config.PipelineConfig{Name: "news"}, []feed.Source{src}, DigestOptions{})
		f.sink.errs = []error{&apperror.DeliveryError{StatusCode: 500}}

		run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
		require.Error(t, err)
		assert.Equal(t, 1, run.Attempts)
	})
}

func TestDigestRun_OverlappingTickIsSkipped(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{Name: "news"}, []feed.Source{
		&fakeSource{name: "rss:a", payload: &feed.Payload{Records: rssRecords(1, 3)}},
	}, DigestOptions{})
	f.sink.block = make(chan struct{})
	f.sink.entered = make(chan struct{}, 1)

	done := make(chan *dto.PipelineRunResponse)
	go func() {
		run, _ := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
		done <- run
	}()
	<-f.sink.entered

	second, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusSkipped, second.Status)

	close(f.sink.block)
	first := <-done
	assert.Equal(t, entity.RunStatusDelivered, first.Status)

	skipped, err := f.runs.FindAll(context.Background(), specification.ByStatus{Status: entity.RunStatusSkipped})
	require.NoError(t, err)
	assert.NotEmpty(t, skipped)
}

func TestDigestRun_SkipSeenDropsDeliveredItems(t *testing.T) {
	records := rssRecords(3, 3)
	src := &fakeSource{name: "rss:a", payload: &feed.Payload{Records: records[:2]}}
	f := newDigestFixture(t, config.PipelineConfig{Name: "news", Header: "News", SkipSeen: true}, []feed.Source{src}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, run.ItemCount)

	src.payload = &feed.Payload{Records: records}
	run, err = f.svc.Run(context.Background(), "news", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.ItemCount)

	delivered := f.sink.Delivered()
	require.Len(t, delivered, 2)
	assert.Contains(t, delivered[1].Content, records[2].Link)
	assert.NotContains(t, delivered[1].Content, records[0].Link)
}

func TestDigestRun_DryRunDoesNotDeliverOrRecord(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{Name: "news", Header: "News"}, []feed.Source{
		&fakeSource{name: "rss:a", payload: &feed.Payload{Records: rssRecords(2, 3)}},
	}, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerManual, dto.RunPipelineRequest{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusPreview, run.Status)
	assert.True(t, strings.HasPrefix(run.Content, "News\n\n1. "))
	assert.Empty(t, f.sink.Delivered())

	recorded, _ := f.runs.FindAll(context.Background())
	assert.Empty(t, recorded)
}

func TestDigestRun_UnknownPipeline(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{Name: "news"}, nil, DigestOptions{})

	run, err := f.svc.Run(context.Background(), "weather", dto.TriggerManual, dto.RunPipelineRequest{})
	assert.Nil(t, run)
	assert.ErrorIs(t, err, ErrPipelineNotFound)
}

func TestDigestService_Pipelines(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{
		Name:     "news",
		Schedule: config.ScheduleConfig{Cron: "0 8 * * *"},
	}, []feed.Source{feed.NewStaticSource("x", "y")}, DigestOptions{})

	list := f.svc.Pipelines()
	require.Len(t, list, 1)
	assert.Equal(t, "news", list[0].Name)
	assert.Equal(t, "0 8 * * *", list[0].Schedule)
	assert.Equal(t, []string{"static:x"}, list[0].Sources)
	assert.Equal(t, "fake", list[0].Sink)
	assert.Equal(t, "UTC", list[0].Timezone)
}

type fakePublisher struct {
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func TestDigestRun_PublishesRunCompleted(t *testing.T) {
	pub := &fakePublisher{}
	f := newDigestFixture(t, config.PipelineConfig{Name: "news"}, []feed.Source{
		&fakeSource{name: "rss:a", payload: &feed.Payload{Records: rssRecords(2, 3)}},
	}, DigestOptions{Publisher: pub})

	run, err := f.svc.Run(context.Background(), "news", dto.TriggerManual, dto.RunPipelineRequest{})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeRunCompleted, pub.events[0].EventType())
	payload := pub.events[0].Payload()
	assert.Equal(t, run.RunId.String(), payload["run_id"])
	assert.Equal(t, entity.RunStatusDelivered, payload["status"])
	assert.Equal(t, 2, payload["items"])
}

type stalledMailSender struct {
	release chan struct{}
}

func (s *stalledMailSender) DialAndSend(...*gomail.Message) error {
	<-s.release
	return nil
}

func TestDigestRun_StalledMailDeliveryTimesOut(t *testing.T) {
	sender := &stalledMailSender{release: make(chan struct{})}
	defer close(sender.release)

	p := &Pipeline{
		Config:   config.PipelineConfig{Name: "mail", Header: "Mail", ItemLimit: 10, OutputLimit: 1900},
		Sources:  []feed.Source{&fakeSource{name: "rss:a", payload: &feed.Payload{Records: rssRecords(1, 3)}}},
		Sink:     delivery.NewMailSink(sender, "bot@example.com", "team@example.com", "Mail", 1900),
		Location: time.UTC,
	}
	svc := NewDigestService([]*Pipeline{p}, nil, runlock.NewMemoryLocker(), memory.NewPipelineRunRepository(10), nil,
		logger.NewNopLogger(), DigestOptions{DeliveryTimeout: 50 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), "mail", dto.TriggerSchedule, dto.RunPipelineRequest{})
		done <- err
	}()

	select {
	case err := <-done:
		var derr *apperror.DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after the delivery timeout")
	}

	// The run lock was released, so the next tick is not skipped.
	next, _ := svc.Run(context.Background(), "mail", dto.TriggerSchedule, dto.RunPipelineRequest{})
	require.NotNil(t, next)
	assert.NotEqual(t, entity.RunStatusSkipped, next.Status)
}

func TestDigestRun_PipelineModelOverride(t *testing.T) {
	f := newDigestFixture(t, config.PipelineConfig{
		Name:        "research",
		Synthesize:  true,
		Instruction: "{{input}}",
		Model:       "claude-3-5-sonnet-latest",
		Temperature: 0.2,
	}, []feed.Source{feed.NewStaticSource("research", "signal")}, DigestOptions{})

	_, err := f.svc.Run(context.Background(), "research", dto.TriggerManual, dto.RunPipelineRequest{})
	require.NoError(t, err)

	require.Equal(t, 1, f.provider.Calls())
	assert.Equal(t, "claude-3-5-sonnet-latest", f.provider.gotOpts[0].Model)
	assert.Equal(t, 0.2, f.provider.gotOpts[0].Temperature)
}
