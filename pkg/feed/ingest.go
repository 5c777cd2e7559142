package feed

import (
	"context"
	"time"

	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/store"

	"golang.org/x/sync/errgroup"
)

const maxParallelFetches = 4

// Collection is the merged output of one ingestion pass. Records keep
// source order, then item order within each source.
type Collection struct {
	Records  []store.NormalizedRecord
	Signals  []string
	Failures []apperror.SourceFailure
}

// Fetch pulls every source independently, each bounded by timeout. A
// failing source is recorded in Failures and the rest still contribute.
// Only when all sources fail is an *apperror.IngestionError returned.
func Fetch(ctx context.Context, sources []Source, timeout time.Duration) (*Collection, error) {
	payloads := make([]*Payload, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(maxParallelFetches)
	for i, src := range sources {
		g.Go(func() error {
			fctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			payloads[i], errs[i] = src.Fetch(fctx)
			return nil
		})
	}
	_ = g.Wait()

	out := &Collection{}
	for i, src := range sources {
		if errs[i] != nil {
			out.Failures = append(out.Failures, apperror.SourceFailure{Source: src.Name(), Err: errs[i]})
			continue
		}
		if payloads[i] == nil {
			continue
		}
		out.Records = append(out.Records, payloads[i].Records...)
		if payloads[i].Signal != "" {
			out.Signals = append(out.Signals, payloads[i].Signal)
		}
	}

	if len(sources) > 0 && len(out.Failures) == len(sources) {
		return nil, &apperror.IngestionError{Failures: out.Failures}
	}
	return out, nil
}
