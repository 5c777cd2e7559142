package mapper

import (
	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/entity"
)

type RunMapper struct{}

func NewRunMapper() *RunMapper {
	return &RunMapper{}
}

func (m *RunMapper) ToResponse(run *entity.PipelineRun) *dto.PipelineRunResponse {
	if run == nil {
		return nil
	}
	res := &dto.PipelineRunResponse{
		RunId:      run.Id,
		Pipeline:   run.Pipeline,
		Trigger:    run.Trigger,
		Status:     run.Status,
		ItemCount:  run.ItemCount,
		Characters: run.Characters,
		Attempts:   run.Attempts,
		ErrorKind:  run.ErrorKind,
		Error:      run.ErrorMessage,
		StartedAt:  run.StartedAt,
		DurationMs: run.DurationMs,
	}
	// Rows read back from jsonb hold []interface{}.
	switch w := run.Details["warnings"].(type) {
	case []string:
		res.Warnings = w
	case []interface{}:
		for _, v := range w {
			if s, ok := v.(string); ok {
				res.Warnings = append(res.Warnings, s)
			}
		}
	}
	return res
}
