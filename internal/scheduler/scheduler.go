// Package scheduler turns pipeline schedules into ticks on the trigger bus.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"ai-digest-bot/internal/config"
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

const module = "Scheduler"

// TickPublisher receives one tick per due pipeline.
type TickPublisher interface {
	PublishTick(pipeline, trigger string) error
}

type Entry struct {
	Pipeline string
	Spec     string
	Next     time.Time
}

type Scheduler struct {
	cron    *cron.Cron
	pub     TickPublisher
	logger  logger.ILogger
	entries map[cron.EntryID]Entry
	onBoot  []string
}

// New registers every pipeline. Calendar expressions are evaluated in the
// pipeline timezone; intervals are fixed durations from Start.
func New(pipelines []config.PipelineConfig, pub TickPublisher, log logger.ILogger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		pub:     pub,
		logger:  log,
		entries: make(map[cron.EntryID]Entry),
	}

	for _, p := range pipelines {
		name := p.Name
		job := cron.FuncJob(func() { s.fire(name, dto.TriggerSchedule) })

		var (
			id   cron.EntryID
			spec string
			err  error
		)
		switch {
		case p.Schedule.Cron != "":
			tz := p.Schedule.Timezone
			if tz == "" {
				tz = "UTC"
			}
			spec = fmt.Sprintf("CRON_TZ=%s %s", tz, p.Schedule.Cron)
			id, err = s.cron.AddJob(spec, job)
		case p.Schedule.IntervalMinutes > 0:
			every := time.Duration(p.Schedule.IntervalMinutes) * time.Minute
			spec = "@every " + every.String()
			id = s.cron.Schedule(cron.Every(every), job)
		}
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", name, err)
		}
		if spec != "" {
			s.entries[id] = Entry{Pipeline: name, Spec: spec}
		}
		if p.Schedule.RunOnBoot {
			s.onBoot = append(s.onBoot, name)
		}
	}
	return s, nil
}

// Start begins ticking and fires run-on-boot pipelines once.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, name := range s.onBoot {
		s.fire(name, dto.TriggerBoot)
	}
	for _, e := range s.Entries() {
		s.logger.Info(module, "Pipeline scheduled", map[string]interface{}{
			"pipeline": e.Pipeline, "spec": e.Spec, "next": e.Next,
		})
	}
}

// Stop prevents new ticks. Runs already on the bus are not affected.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, ce := range s.cron.Entries() {
		e, ok := s.entries[ce.ID]
		if !ok {
			continue
		}
		e.Next = ce.Next
		if e.Next.IsZero() {
			e.Next = ce.Schedule.Next(time.Now())
		}
		out = append(out, e)
	}
	return out
}

func (s *Scheduler) fire(pipeline, trigger string) {
	if err := s.pub.PublishTick(pipeline, trigger); err != nil {
		s.logger.Error(module, "Failed to publish tick", map[string]interface{}{
			"pipeline": pipeline, "trigger": trigger, "error": err.Error(),
		})
	}
}
