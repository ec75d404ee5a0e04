package model

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// #region batch
// Batch is one forward evaluation's inputs.
type Batch struct {
	Instances *layout.Tensor
	Indices   [][]int
}

// EvaluateBatches runs Forward on every batch with up to workers
// concurrent evaluations. Results keep the input order. The model must
// not be modified while this runs.
func (m *Model) EvaluateBatches(ctx context.Context, batches []Batch, workers int) ([]*layout.Tensor, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]*layout.Tensor, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			probs, err := m.Forward(batches[i].Instances, batches[i].Indices)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			out[i] = probs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion batch
