package dto

import (
	"time"

	"github.com/google/uuid"
)

const (
	TriggerSchedule = "schedule"
	TriggerBoot     = "boot"
	TriggerManual   = "manual"
	TriggerMessage  = "message"
)

type PipelineResponse struct {
	Name       string   `json:"name"`
	Sources    []string `json:"sources"`
	Synthesize bool     `json:"synthesize"`
	Schedule   string   `json:"schedule"`
	Timezone   string   `json:"timezone"`
	RunOnBoot  bool     `json:"run_on_boot"`
	Sink       string   `json:"sink"`
}

type RunPipelineRequest struct {
	DryRun bool `json:"dry_run"`
}

type PipelineRunResponse struct {
	RunId      uuid.UUID `json:"run_id"`
	Pipeline   string    `json:"pipeline"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	ItemCount  int       `json:"item_count"`
	Characters int       `json:"characters"`
	Attempts   int       `json:"attempts"`
	Warnings   []string  `json:"warnings,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	// Content is only filled for dry runs.
	Content    string    `json:"content,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

type ListRunsRequest struct {
	Pipeline string `query:"pipeline"`
	Status   string `query:"status" validate:"omitempty,oneof=DELIVERED REPLIED EMPTY SKIPPED FAILED"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=500"`
}
