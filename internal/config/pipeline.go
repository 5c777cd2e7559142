package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-digest-bot/internal/constant"
	"ai-digest-bot/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	SourceTypeRSS    = "rss"
	SourceTypeStatic = "static"

	SinkTypeWebhook = "webhook"
	SinkTypeMail    = "mail"

	DefaultNewsCron = "0 8 * * *"
)

// PipelineConfig is one digest pipeline. Variants differ only in these
// values; the runner has a single code path for all of them.
type PipelineConfig struct {
	Name            string         `mapstructure:"name" validate:"required"`
	Sources         []SourceConfig `mapstructure:"sources" validate:"required,min=1,dive"`
	Instruction     string         `mapstructure:"instruction"`
	SystemPrompt    string         `mapstructure:"system_prompt"`
	Synthesize      bool           `mapstructure:"synthesize"`
	ItemLimit       int            `mapstructure:"item_limit" validate:"min=0"`
	OutputLimit     int            `mapstructure:"output_limit" validate:"min=0,max=1900"`
	MaxOutputTokens int            `mapstructure:"max_output_tokens" validate:"min=0"`
	// Model and Temperature override the provider defaults for this pipeline.
	Model           string         `mapstructure:"model"`
	Temperature     float64        `mapstructure:"temperature" validate:"min=0,max=1"`
	Header          string         `mapstructure:"header"`
	DatedHeader     bool           `mapstructure:"dated_header"`
	SkipSeen        bool           `mapstructure:"skip_seen"`
	Schedule        ScheduleConfig `mapstructure:"schedule"`
	Sink            SinkConfig     `mapstructure:"sink"`
}

type SourceConfig struct {
	Type  string `mapstructure:"type" validate:"oneof=rss static"`
	URL   string `mapstructure:"url" validate:"omitempty,url"`
	Label string `mapstructure:"label"`
	Text  string `mapstructure:"text"`
}

type ScheduleConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes" validate:"min=0"`
	Cron            string `mapstructure:"cron"`
	Timezone        string `mapstructure:"timezone"`
	RunOnBoot       bool   `mapstructure:"run_on_boot"`
}

type SinkConfig struct {
	Type string `mapstructure:"type" validate:"omitempty,oneof=webhook mail"`
	URL  string `mapstructure:"url" validate:"omitempty,url"`
	To   string `mapstructure:"to" validate:"omitempty,email"`
}

// Location resolves the schedule timezone, UTC when unset.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Find returns the pipeline with the given name.
func (c *Config) Find(name string) (PipelineConfig, bool) {
	for _, p := range c.Pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return PipelineConfig{}, false
}

// DefaultPipelines builds the research and news pipelines from the
// environment surface.
func DefaultPipelines(cfg *Config) []PipelineConfig {
	var out []PipelineConfig

	if cfg.Digest.ResearchEnabled {
		out = append(out, PipelineConfig{
			Name:            "research",
			Sources:         []SourceConfig{{Type: SourceTypeStatic, Label: "research", Text: constant.ResearchStubInputV1}},
			Instruction:     constant.ResearchInstructionV1,
			SystemPrompt:    constant.ResearchSystemPromptV1,
			Synthesize:      true,
			MaxOutputTokens: cfg.Digest.MaxOutputTokens,
			Header:          constant.ResearchHeader,
			Schedule: ScheduleConfig{
				IntervalMinutes: cfg.Digest.IntervalMinutes,
				Timezone:        cfg.Digest.Timezone,
				RunOnBoot:       cfg.Digest.RunOnBoot,
			},
			Sink: SinkConfig{Type: SinkTypeWebhook, URL: cfg.Digest.WebhookURL},
		})
	}

	if len(cfg.Digest.FeedURLs) > 0 {
		sources := make([]SourceConfig, 0, len(cfg.Digest.FeedURLs))
		for _, u := range cfg.Digest.FeedURLs {
			sources = append(sources, SourceConfig{Type: SourceTypeRSS, URL: u})
		}
		cronExpr := cfg.Digest.Cron
		if cronExpr == "" {
			cronExpr = DefaultNewsCron
		}
		out = append(out, PipelineConfig{
			Name:        "news",
			Sources:     sources,
			ItemLimit:   cfg.Digest.ItemLimit,
			Header:      constant.NewsHeader,
			DatedHeader: true,
			Schedule: ScheduleConfig{
				Cron:     cronExpr,
				Timezone: cfg.Digest.Timezone,
			},
			Sink: SinkConfig{Type: SinkTypeWebhook, URL: cfg.Digest.WebhookURL},
		})
	}

	return out
}

// LoadPipelines reads a `pipelines:` list from a YAML, TOML or JSON file.
func LoadPipelines(path string) ([]PipelineConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &apperror.ConfigurationError{Field: "PIPELINES_FILE", Reason: err.Error()}
	}

	var file struct {
		Pipelines []PipelineConfig `mapstructure:"pipelines"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, &apperror.ConfigurationError{Field: "PIPELINES_FILE", Reason: err.Error()}
	}
	return file.Pipelines, nil
}

// buildPipelines merges file pipelines over the defaults by name and fills
// unset fields from the environment.
func buildPipelines(cfg *Config) ([]PipelineConfig, error) {
	pipelines := DefaultPipelines(cfg)

	if cfg.Digest.PipelinesFile != "" {
		extra, err := LoadPipelines(cfg.Digest.PipelinesFile)
		if err != nil {
			return nil, err
		}
		for _, p := range extra {
			replaced := false
			for i := range pipelines {
				if pipelines[i].Name == p.Name {
					pipelines[i] = p
					replaced = true
				}
			}
			if !replaced {
				pipelines = append(pipelines, p)
			}
		}
	}

	for i := range pipelines {
		applyPipelineDefaults(&pipelines[i], cfg)
	}
	return pipelines, nil
}

func applyPipelineDefaults(p *PipelineConfig, cfg *Config) {
	if p.ItemLimit == 0 {
		p.ItemLimit = cfg.Digest.ItemLimit
	}
	if p.OutputLimit == 0 {
		p.OutputLimit = cfg.Digest.TransportCharLimit
	}
	if p.MaxOutputTokens == 0 {
		p.MaxOutputTokens = cfg.Digest.MaxOutputTokens
	}
	if p.Schedule.Timezone == "" {
		p.Schedule.Timezone = cfg.Digest.Timezone
	}
	if p.Sink.Type == "" {
		p.Sink.Type = SinkTypeWebhook
	}
	if p.Sink.Type == SinkTypeWebhook && p.Sink.URL == "" {
		p.Sink.URL = cfg.Digest.WebhookURL
	}
	if p.Synthesize && p.Instruction == "" {
		p.Instruction = constant.InputPlaceholder
	}
}

var validate = validator.New()

// Validate checks struct tags first and then the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &apperror.ConfigurationError{
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &apperror.ConfigurationError{Field: "config", Reason: err.Error()}
	}

	needsModel := c.Chat.Enabled
	seen := make(map[string]bool, len(c.Pipelines))
	for _, p := range c.Pipelines {
		if seen[p.Name] {
			return &apperror.ConfigurationError{Field: "pipelines." + p.Name, Reason: "duplicate pipeline name"}
		}
		seen[p.Name] = true

		if err := validatePipeline(p, c); err != nil {
			return err
		}
		needsModel = needsModel || p.Synthesize
	}

	if needsModel && c.LLM.Provider == "anthropic" && c.LLM.APIKey == "" {
		return &apperror.ConfigurationError{Field: "ANTHROPIC_API_KEY", Reason: "required by the anthropic provider"}
	}
	return nil
}

func validatePipeline(p PipelineConfig, c *Config) error {
	field := "pipelines." + p.Name

	if p.OutputLimit > c.Digest.TransportCharLimit {
		return &apperror.ConfigurationError{
			Field:  field + ".output_limit",
			Reason: fmt.Sprintf("%d exceeds TRANSPORT_CHAR_LIMIT %d", p.OutputLimit, c.Digest.TransportCharLimit),
		}
	}

	for _, s := range p.Sources {
		if s.Type == SourceTypeRSS && s.URL == "" {
			return &apperror.ConfigurationError{Field: field + ".sources", Reason: "rss source needs a url"}
		}
	}

	if p.Synthesize && !strings.Contains(p.Instruction, constant.InputPlaceholder) {
		return &apperror.ConfigurationError{Field: field + ".instruction", Reason: "missing " + constant.InputPlaceholder}
	}

	s := p.Schedule
	switch {
	case s.IntervalMinutes > 0 && s.Cron != "":
		return &apperror.ConfigurationError{Field: field + ".schedule", Reason: "set interval_minutes or cron, not both"}
	case s.Cron != "":
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return &apperror.ConfigurationError{Field: field + ".schedule.cron", Reason: err.Error()}
		}
	case s.IntervalMinutes <= 0 && !s.RunOnBoot:
		return &apperror.ConfigurationError{Field: field + ".schedule", Reason: "pipeline has no trigger"}
	}
	if _, err := s.Location(); err != nil {
		return &apperror.ConfigurationError{Field: field + ".schedule.timezone", Reason: err.Error()}
	}

	switch p.Sink.Type {
	case SinkTypeWebhook:
		if p.Sink.URL == "" {
			return &apperror.ConfigurationError{Field: "DIGEST_WEBHOOK_URL", Reason: "required by pipeline " + p.Name}
		}
	case SinkTypeMail:
		if p.Sink.To == "" {
			return &apperror.ConfigurationError{Field: field + ".sink.to", Reason: "mail sink needs a recipient"}
		}
		if c.SMTP.Host == "" {
			return &apperror.ConfigurationError{Field: "SMTP_HOST", Reason: "required by pipeline " + p.Name}
		}
	}
	return nil
}
