package implementation

import (
	"context"

	"ai-digest-bot/internal/entity"
	"ai-digest-bot/internal/repository/contract"
	"ai-digest-bot/internal/repository/specification"

	"gorm.io/gorm"
)

type PipelineRunRepositoryImpl struct {
	db *gorm.DB
}

func NewPipelineRunRepository(db *gorm.DB) contract.PipelineRunRepository {
	return &PipelineRunRepositoryImpl{
		db: db,
	}
}

func (r *PipelineRunRepositoryImpl) Create(ctx context.Context, run *entity.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *PipelineRunRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineRun, error) {
	query := r.db.WithContext(ctx).Model(&entity.PipelineRun{})
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	var runs []*entity.PipelineRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
