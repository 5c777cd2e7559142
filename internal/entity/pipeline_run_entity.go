package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Run outcomes.
const (
	RunStatusDelivered = "DELIVERED"
	RunStatusReplied   = "REPLIED"
	RunStatusEmpty     = "EMPTY"
	RunStatusSkipped   = "SKIPPED"
	RunStatusFailed    = "FAILED"
	// RunStatusPreview marks a dry run; it is never persisted.
	RunStatusPreview = "PREVIEW"
)

// PipelineRun is the audit row of one run. It never carries the digest
// or conversation content itself.
type PipelineRun struct {
	Id           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Pipeline     string            `gorm:"type:varchar(100);not null;index:idx_pipeline_runs_pipeline_started,priority:1" json:"pipeline"`
	Trigger      string            `gorm:"type:varchar(20);not null" json:"trigger"`
	Status       string            `gorm:"type:varchar(20);not null;index" json:"status"`
	ErrorKind    string            `gorm:"type:varchar(30)" json:"error_kind,omitempty"`
	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`
	ItemCount    int               `json:"item_count"`
	Characters   int               `json:"characters"`
	Attempts     int               `json:"attempts"`
	Details      datatypes.JSONMap `gorm:"type:jsonb" json:"details,omitempty"`
	StartedAt    time.Time         `gorm:"not null;index:idx_pipeline_runs_pipeline_started,priority:2" json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	DurationMs   int64             `json:"duration_ms"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
