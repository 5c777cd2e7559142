package contract

import (
	"context"

	"ai-digest-bot/internal/entity"
	"ai-digest-bot/internal/repository/specification"
)

type PipelineRunRepository interface {
	Create(ctx context.Context, run *entity.PipelineRun) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineRun, error)
}
