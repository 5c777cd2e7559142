package service

import (
	"context"

	"ai-digest-bot/internal/dto"
	"ai-digest-bot/internal/mapper"
	"ai-digest-bot/internal/repository/contract"
	"ai-digest-bot/internal/repository/specification"
)

const defaultRunListLimit = 50

type IRunService interface {
	List(ctx context.Context, req dto.ListRunsRequest) ([]*dto.PipelineRunResponse, error)
}

type runService struct {
	repo   contract.PipelineRunRepository
	mapper *mapper.RunMapper
}

func NewRunService(repo contract.PipelineRunRepository) IRunService {
	return &runService{repo: repo, mapper: mapper.NewRunMapper()}
}

func (s *runService) List(ctx context.Context, req dto.ListRunsRequest) ([]*dto.PipelineRunResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRunListLimit
	}

	specs := []specification.Specification{specification.NewestFirst{}, specification.Limit{N: limit}}
	if req.Pipeline != "" {
		specs = append(specs, specification.ByPipeline{Name: req.Pipeline})
	}
	if req.Status != "" {
		specs = append(specs, specification.ByStatus{Status: req.Status})
	}

	runs, err := s.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.PipelineRunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, s.mapper.ToResponse(r))
	}
	return out, nil
}
