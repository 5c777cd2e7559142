package memory

import (
	"context"
	"sort"
	"sync"

	"ai-digest-bot/internal/entity"
	"ai-digest-bot/internal/repository/contract"
	"ai-digest-bot/internal/repository/specification"
)

// PipelineRunRepository keeps the most recent runs in process memory. It
// is used when no database is configured.
type PipelineRunRepository struct {
	mu       sync.RWMutex
	runs     []*entity.PipelineRun
	capacity int
}

var _ contract.PipelineRunRepository = (*PipelineRunRepository)(nil)

func NewPipelineRunRepository(capacity int) *PipelineRunRepository {
	if capacity < 1 {
		capacity = 100
	}
	return &PipelineRunRepository{capacity: capacity}
}

func (r *PipelineRunRepository) Create(_ context.Context, run *entity.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs = append(r.runs, &cp)
	if over := len(r.runs) - r.capacity; over > 0 {
		r.runs = append([]*entity.PipelineRun(nil), r.runs[over:]...)
	}
	return nil
}

// FindAll applies filter specifications, orders newest first and honours
// specification.Limit. Other specifications are ignored.
func (r *PipelineRunRepository) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := 0
	var filters []specification.RunFilter
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.Limit:
			limit = s.N
		case specification.RunFilter:
			filters = append(filters, s)
		}
	}

	out := make([]*entity.PipelineRun, 0, len(r.runs))
	for _, run := range r.runs {
		keep := true
		for _, f := range filters {
			if !f.Match(run.Pipeline, run.Status) {
				keep = false
				break
			}
		}
		if keep {
			cp := *run
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
