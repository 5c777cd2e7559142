package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"ai-digest-bot/internal/config"
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/pkg/delivery"
	"ai-digest-bot/pkg/feed"
)

// Pipeline is a PipelineConfig bound to live sources and a sink.
type Pipeline struct {
	Config   config.PipelineConfig
	Sources  []feed.Source
	Sink     delivery.Sink
	Location *time.Location
}

func (p *Pipeline) Name() string {
	return p.Config.Name
}

// ToResponse describes the pipeline without exposing sink credentials.
func (p *Pipeline) ToResponse() *dto.PipelineResponse {
	sources := make([]string, 0, len(p.Sources))
	for _, s := range p.Sources {
		sources = append(sources, s.Name())
	}

	schedule := p.Config.Schedule.Cron
	if schedule == "" && p.Config.Schedule.IntervalMinutes > 0 {
		schedule = fmt.Sprintf("every %dm", p.Config.Schedule.IntervalMinutes)
	}

	sink := ""
	if p.Sink != nil {
		sink = p.Sink.Name()
	}

	return &dto.PipelineResponse{
		Name:       p.Config.Name,
		Sources:    sources,
		Synthesize: p.Config.Synthesize,
		Schedule:   schedule,
		Timezone:   p.Location.String(),
		RunOnBoot:  p.Config.Schedule.RunOnBoot,
		Sink:       sink,
	}
}

// BuildPipelines wires every configured pipeline. client is shared by all
// RSS sources; mail may be nil when no pipeline uses a mail sink.
func BuildPipelines(cfg *config.Config, client *http.Client, mail delivery.MailSender) ([]*Pipeline, error) {
	out := make([]*Pipeline, 0, len(cfg.Pipelines))
	for _, pc := range cfg.Pipelines {
		p, err := buildPipeline(cfg, pc, client, mail)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", pc.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func buildPipeline(cfg *config.Config, pc config.PipelineConfig, client *http.Client, mail delivery.MailSender) (*Pipeline, error) {
	loc, err := pc.Schedule.Location()
	if err != nil {
		return nil, err
	}

	sources := make([]feed.Source, 0, len(pc.Sources))
	for _, sc := range pc.Sources {
		switch sc.Type {
		case config.SourceTypeRSS:
			sources = append(sources, feed.NewRSSSource(sc.URL, client))
		case config.SourceTypeStatic:
			label := sc.Label
			if label == "" {
				label = pc.Name
			}
			sources = append(sources, feed.NewStaticSource(label, sc.Text))
		default:
			return nil, fmt.Errorf("unknown source type %q", sc.Type)
		}
	}

	var sink delivery.Sink
	switch pc.Sink.Type {
	case config.SinkTypeMail:
		if mail == nil {
			return nil, fmt.Errorf("mail sink without smtp sender")
		}
		subject := strings.TrimSpace(pc.Header)
		if subject == "" {
			subject = pc.Name + " digest"
		}
		from := fmt.Sprintf("%s <%s>", cfg.SMTP.SenderName, cfg.SMTP.Email)
		sink = delivery.NewMailSink(mail, from, pc.Sink.To, subject, pc.OutputLimit)
	default:
		sink = delivery.NewWebhookSink(pc.Sink.URL, pc.OutputLimit, cfg.Timeouts.Delivery)
	}

	return &Pipeline{Config: pc, Sources: sources, Sink: sink, Location: loc}, nil
}
