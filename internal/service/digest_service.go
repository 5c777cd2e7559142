package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-digest-bot/internal/config"
	"ai-digest-bot/internal/constant"
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/entity"
	"ai-digest-bot/internal/pkg/logger"
	"ai-digest-bot/internal/repository/contract"
	"ai-digest-bot/internal/repository/memory"
	"ai-digest-bot/internal/runlock"
	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/digest"
	"ai-digest-bot/pkg/events"
	"ai-digest-bot/pkg/feed"
	"ai-digest-bot/pkg/llm"
	"ai-digest-bot/pkg/store"
	"ai-digest-bot/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
)

const digestModule = "DigestService"

// SeenWindowCapacity bounds the per-pipeline list of delivered item keys.
const SeenWindowCapacity = 200

var ErrPipelineNotFound = errors.New("pipeline not found")

type IDigestService interface {
	Pipelines() []*dto.PipelineResponse
	Pipeline(name string) (*Pipeline, bool)
	Run(ctx context.Context, name, trigger string, req dto.RunPipelineRequest) (*dto.PipelineRunResponse, error)
}

type DigestOptions struct {
	FeedTimeout     time.Duration
	DeliveryRetries int
	// DeliveryTimeout bounds each delivery attempt.
	DeliveryTimeout time.Duration
	RetryBackoff    time.Duration
	// LockTTL bounds a distributed run lock left behind by a crashed replica.
	LockTTL time.Duration
	Now     func() time.Time
	// Publisher, when set, receives a RunCompleted event per recorded run.
	Publisher EventPublisher
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type digestService struct {
	pipelines   map[string]*Pipeline
	order       []string
	synthesizer *llm.Synthesizer
	locker      runlock.Locker
	runRepo     contract.PipelineRunRepository
	seen        *memory.WindowRepository[string]
	logger      logger.ILogger
	tracer      trace.Tracer
	opts        DigestOptions
}

func NewDigestService(
	pipelines []*Pipeline,
	synthesizer *llm.Synthesizer,
	locker runlock.Locker,
	runRepo contract.PipelineRunRepository,
	seen *memory.WindowRepository[string],
	log logger.ILogger,
	opts DigestOptions,
) IDigestService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if locker == nil {
		locker = runlock.NewMemoryLocker()
	}
	if seen == nil {
		seen = memory.NewWindowRepository[string](SeenWindowCapacity)
	}

	byName := make(map[string]*Pipeline, len(pipelines))
	order := make([]string, 0, len(pipelines))
	for _, p := range pipelines {
		byName[p.Name()] = p
		order = append(order, p.Name())
	}

	return &digestService{
		pipelines:   byName,
		order:       order,
		synthesizer: synthesizer,
		locker:      locker,
		runRepo:     runRepo,
		seen:        seen,
		logger:      log,
		tracer:      otel.Tracer("ai-digest-bot/digest"),
		opts:        opts,
	}
}

func (s *digestService) Pipelines() []*dto.PipelineResponse {
	out := make([]*dto.PipelineResponse, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.pipelines[name].ToResponse())
	}
	return out
}

func (s *digestService) Pipeline(name string) (*Pipeline, bool) {
	p, ok := s.pipelines[name]
	return p, ok
}

// Run executes one pipeline end to end. Stage failures are returned as
// the typed apperror kinds and recorded; the response is always non-nil
// for a known pipeline so callers can report the outcome.
func (s *digestService) Run(ctx context.Context, name, trigger string, req dto.RunPipelineRequest) (*dto.PipelineRunResponse, error) {
	p, ok := s.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}

	run := &dto.PipelineRunResponse{
		RunId:     uuid.New(),
		Pipeline:  name,
		Trigger:   trigger,
		StartedAt: s.opts.Now(),
	}
	fields := map[string]interface{}{"run_id": run.RunId.String(), "pipeline": name, "trigger": trigger}

	if !req.DryRun {
		release, locked, err := s.locker.TryLock(ctx, "pipeline:"+name, s.opts.LockTTL)
		switch {
		case err != nil:
			s.logger.Warn(digestModule, "Run lock unavailable, continuing unguarded", merge(fields, map[string]interface{}{"error": err.Error()}))
		case !locked:
			run.Status = entity.RunStatusSkipped
			s.logger.Warn(digestModule, "Previous run still in flight, tick skipped", fields)
			s.record(ctx, run, nil)
			return run, nil
		default:
			defer release()
		}
	}

	ctx, span := s.tracer.Start(ctx, "digest.run", trace.WithAttributes(
		attribute.String("pipeline", name),
		attribute.String("trigger", trigger),
	))
	defer span.End()

	s.logger.Info(digestModule, "Run started", fields)

	err := s.execute(ctx, p, run, req.DryRun)
	if err != nil {
		run.Status = entity.RunStatusFailed
		run.ErrorKind = errorKind(err)
		run.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, run.ErrorKind)
	}
	run.DurationMs = time.Since(run.StartedAt).Milliseconds()

	outcome := merge(fields, map[string]interface{}{
		"status":      run.Status,
		"items":       run.ItemCount,
		"characters":  run.Characters,
		"attempts":    run.Attempts,
		"duration_ms": run.DurationMs,
	})
	if err != nil {
		outcome["error_kind"] = run.ErrorKind
		outcome["error"] = run.Error
		s.logger.Error(digestModule, "Run failed", outcome)
	} else {
		s.logger.Info(digestModule, "Run finished", outcome)
	}

	if !req.DryRun {
		s.record(ctx, run, err)
	}
	return run, err
}

func (s *digestService) execute(ctx context.Context, p *Pipeline, run *dto.PipelineRunResponse, dryRun bool) error {
	pc := p.Config

	collection, err := s.ingest(ctx, p)
	if err != nil {
		return err
	}
	for _, f := range collection.Failures {
		run.Warnings = append(run.Warnings, f.Source+": "+f.Err.Error())
		s.logger.Warn(digestModule, "Source failed, continuing with the rest", map[string]interface{}{
			"run_id": run.RunId.String(), "source": f.Source, "error": f.Err.Error(),
		})
	}

	records := collection.Records
	seenKey := "seen:" + pc.Name
	if pc.SkipSeen {
		records = digest.ExcludeSeen(records, s.seen.Get(seenKey))
	}
	records = digest.Reduce(records, pc.ItemLimit)
	run.ItemCount = len(records)

	header := pc.Header
	if pc.DatedHeader {
		header = digest.DatedHeader(pc.Header, s.opts.Now(), p.Location)
	}

	var body []string
	empty := false
	switch {
	case len(records) == 0 && len(collection.Signals) == 0:
		body = []string{constant.NoStoriesNotice}
		empty = true
	case pc.Synthesize:
		text, err := s.synthesize(ctx, pc, store.DigestRequest{
			SourceRecords:       records,
			RawSignal:           strings.Join(collection.Signals, "\n\n"),
			InstructionTemplate: pc.Instruction,
			SizeLimit:           pc.OutputLimit,
		})
		if err != nil {
			return err
		}
		body = []string{text}
	case len(records) == 0:
		body = []string{strings.Join(collection.Signals, "\n\n")}
	default:
		body = digest.RenderItems(records, p.Location)
	}

	content := digest.Format(header, body, pc.OutputLimit)
	run.Characters = utils.CharCount(content)

	if dryRun {
		run.Content = content
		run.Status = entity.RunStatusPreview
		return nil
	}

	if err := s.deliver(ctx, p, content, run); err != nil {
		return err
	}

	if pc.SkipSeen && len(records) > 0 {
		keys := make([]string, len(records))
		for i, r := range records {
			keys[i] = r.CompositeKey()
		}
		s.seen.Append(seenKey, keys...)
	}

	run.Status = entity.RunStatusDelivered
	if empty {
		run.Status = entity.RunStatusEmpty
	}
	return nil
}

func (s *digestService) ingest(ctx context.Context, p *Pipeline) (*feed.Collection, error) {
	ctx, span := s.tracer.Start(ctx, "digest.ingest")
	defer span.End()
	span.SetAttributes(attribute.Int("sources", len(p.Sources)))

	collection, err := feed.Fetch(ctx, p.Sources, s.opts.FeedTimeout)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(collection.Records)))
	return collection, nil
}

func (s *digestService) synthesize(ctx context.Context, pc config.PipelineConfig, req store.DigestRequest) (string, error) {
	if s.synthesizer == nil {
		return "", apperror.NewSynthesisError("no model configured", nil)
	}

	ctx, span := s.tracer.Start(ctx, "digest.synthesize")
	defer span.End()

	input := req.RawSignal
	if len(req.SourceRecords) > 0 {
		input = strings.TrimSpace(input + "\n\n" + digest.Serialize(req.SourceRecords))
	}
	prompt := strings.ReplaceAll(req.InstructionTemplate, constant.InputPlaceholder, strings.TrimSpace(input))

	text, err := s.synthesizer.Synthesize(ctx, llm.SynthesisRequest{
		Instruction:     pc.SystemPrompt,
		Messages:        []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxOutputTokens: pc.MaxOutputTokens,
		MaxOutputChars:  req.SizeLimit,
		Model:           pc.Model,
		Temperature:     pc.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return text, nil
}

// deliver makes one attempt plus up to DeliveryRetries retries, and only
// retries failures the sink marks as retryable.
func (s *digestService) deliver(ctx context.Context, p *Pipeline, content string, run *dto.PipelineRunResponse) error {
	ctx, span := s.tracer.Start(ctx, "digest.deliver")
	defer span.End()

	payload := store.DeliveryPayload{Content: content, MentionPolicy: store.MentionSuppressAll}

	for attempt := 1; ; attempt++ {
		run.Attempts = attempt
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.DeliveryTimeout)
		err := p.Sink.Deliver(attemptCtx, payload)
		cancel()
		if err == nil {
			return nil
		}

		var derr *apperror.DeliveryError
		if !errors.As(err, &derr) {
			derr = &apperror.DeliveryError{Err: err}
		}
		if !derr.Retryable() || attempt > s.opts.DeliveryRetries {
			span.RecordError(derr)
			return derr
		}

		s.logger.Warn(digestModule, "Delivery failed, retrying", map[string]interface{}{
			"run_id": run.RunId.String(), "attempt": attempt, "status": derr.StatusCode, "error": derr.Error(),
		})

		select {
		case <-ctx.Done():
			return &apperror.DeliveryError{Err: ctx.Err()}
		case <-time.After(time.Duration(attempt) * s.opts.RetryBackoff):
		}
	}
}

func (s *digestService) record(ctx context.Context, run *dto.PipelineRunResponse, runErr error) {
	details := datatypes.JSONMap{}
	if len(run.Warnings) > 0 {
		details["warnings"] = run.Warnings
	}
	var ierr *apperror.IngestionError
	if errors.As(runErr, &ierr) {
		sources := make([]string, 0, len(ierr.Failures))
		for _, f := range ierr.Failures {
			sources = append(sources, f.Source)
		}
		details["failed_sources"] = sources
	}

	finished := run.StartedAt.Add(time.Duration(run.DurationMs) * time.Millisecond)
	row := &entity.PipelineRun{
		Id:           run.RunId,
		Pipeline:     run.Pipeline,
		Trigger:      run.Trigger,
		Status:       run.Status,
		ErrorKind:    run.ErrorKind,
		ErrorMessage: run.Error,
		ItemCount:    run.ItemCount,
		Characters:   run.Characters,
		Attempts:     run.Attempts,
		Details:      details,
		StartedAt:    run.StartedAt,
		FinishedAt:   finished,
		DurationMs:   run.DurationMs,
	}

	// The audit write must not be lost because the run context expired.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if s.runRepo != nil {
		if err := s.runRepo.Create(wctx, row); err != nil {
			s.logger.Warn(digestModule, "Failed to record run", map[string]interface{}{
				"run_id": run.RunId.String(), "error": err.Error(),
			})
		}
	}

	if s.opts.Publisher != nil {
		evt := events.RunCompleted{
			RunId:     run.RunId.String(),
			Pipeline:  run.Pipeline,
			Trigger:   run.Trigger,
			Status:    run.Status,
			ErrorKind: run.ErrorKind,
			Items:     run.ItemCount,
			At:        finished,
		}
		if err := s.opts.Publisher.Publish(wctx, evt); err != nil {
			s.logger.Warn(digestModule, "Failed to publish run event", map[string]interface{}{
				"run_id": run.RunId.String(), "error": err.Error(),
			})
		}
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperror.ErrIngestion):
		return "ingestion"
	case errors.Is(err, apperror.ErrSynthesis):
		return "synthesis"
	case errors.Is(err, apperror.ErrDelivery):
		return "delivery"
	case errors.Is(err, apperror.ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

func merge(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
