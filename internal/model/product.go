package model

import (
	"fmt"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// #region product-label
// ProductLabel multiplies per-domain probabilities (B, Cd) into one label
// per instance (B, 1): an instance carries the label only when every
// concept domain matches.
func ProductLabel(probs *layout.Tensor) (*layout.Tensor, error) {
	if probs == nil || probs.Rank() != 2 {
		return nil, fmt.Errorf("product label needs (batch, domains) probabilities: %w", concept.ErrShape)
	}
	out := layout.New(probs.Dim(0), 1)
	for i := 0; i < probs.Dim(0); i++ {
		v := 1.0
		for j := 0; j < probs.Dim(1); j++ {
			v *= probs.At(i, j)
		}
		out.Set(v, i, 0)
	}
	return out, nil
}

// ForwardProduct is Forward reduced to one label per instance.
func (m *Model) ForwardProduct(instances *layout.Tensor, indices [][]int) (*layout.Tensor, error) {
	probs, err := m.Forward(instances, indices)
	if err != nil {
		return nil, err
	}
	return ProductLabel(probs)
}

// PredictProduct thresholds ForwardProduct at 0.5.
func (m *Model) PredictProduct(instances *layout.Tensor, indices [][]int) ([]bool, error) {
	label, err := m.ForwardProduct(instances, indices)
	if err != nil {
		return nil, err
	}
	out := make([]bool, label.Dim(0))
	for i := range out {
		out[i] = label.At(i, 0) >= 0.5
	}
	return out, nil
}

// ProductLoss is the binary cross-entropy of ForwardProduct against one
// 0/1 label per instance.
func (m *Model) ProductLoss(instances *layout.Tensor, indices [][]int, labels []float64) (float64, error) {
	label, err := m.ForwardProduct(instances, indices)
	if err != nil {
		return 0, err
	}
	targets, err := layout.FromData(labels, len(labels), 1)
	if err != nil {
		return 0, err
	}
	return Loss(label, targets)
}

// #endregion product-label

// #region index-accuracy
// IndexAccuracy measures how often a Product model recovers the property
// an instance was drawn with. rows holds embedding rows (AddOffset
// output), one per concept domain. Every candidate property is scored on
// every concept domain; the best candidate is compared with
// RemoveOffset(rows). The result has one accuracy per concept domain.
// Pass positive instances only: their rows describe them.
func (m *Model) IndexAccuracy(instances *layout.Tensor, rows [][]int) ([]float64, error) {
	if m.cfg.Kind() != concept.KindProduct {
		return nil, fmt.Errorf("index accuracy on %v concept: %w", m.cfg.Kind(), concept.ErrConfig)
	}
	batch, err := m.PrepareInstances(instances)
	if err != nil {
		return nil, err
	}
	b, cd := batch.Dim(0), m.cfg.NumConceptDomains()
	if b == 0 || len(rows) != b {
		return nil, fmt.Errorf("index accuracy: %d index rows for %d instances: %w", len(rows), b, concept.ErrShape)
	}
	truth := make([][]int, b)
	for i, r := range rows {
		if truth[i], err = m.cfg.RemoveOffset(r); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
	}

	best := make([][]int, b)
	score := make([][]float64, b)
	for i := range best {
		best[i] = make([]int, cd)
		score[i] = make([]float64, cd)
		for j := range score[i] {
			score[i][j] = -1
		}
	}
	candidate := make([][]int, b)
	for p := 0; p < m.cfg.NumProperties(); p++ {
		for i := range candidate {
			candidate[i] = make([]int, cd)
			for j := range candidate[i] {
				candidate[i][j] = p
			}
		}
		probs, err := m.Forward(batch, candidate)
		if err != nil {
			return nil, err
		}
		// Strict comparison keeps the first maximum.
		for i := 0; i < b; i++ {
			for j := 0; j < cd; j++ {
				if v := probs.At(i, j); v > score[i][j] {
					score[i][j], best[i][j] = v, p
				}
			}
		}
	}

	acc := make([]float64, cd)
	for i := 0; i < b; i++ {
		for j := 0; j < cd; j++ {
			if best[i][j] == truth[i][j] {
				acc[j]++
			}
		}
	}
	for j := range acc {
		acc[j] /= float64(b)
	}
	return acc, nil
}

// #endregion index-accuracy
