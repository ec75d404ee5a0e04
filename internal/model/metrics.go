package model

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

const eps = 1e-7

// #region metrics
// Loss is the mean binary cross-entropy between probs and 0/1 targets.
func Loss(probs, targets *layout.Tensor) (float64, error) {
	if err := sameShape(probs, targets); err != nil {
		return 0, err
	}
	p, y := probs.Data(), targets.Data()
	if len(p) == 0 {
		return 0, nil
	}
	var sum float64
	for i := range p {
		q := math.Min(math.Max(p[i], eps), 1-eps)
		sum -= y[i]*math.Log(q) + (1-y[i])*math.Log(1-q)
	}
	return sum / float64(len(p)), nil
}

// LossGradient is dLoss/dProbability for Loss, shaped like probs.
func LossGradient(probs, targets *layout.Tensor) (*layout.Tensor, error) {
	if err := sameShape(probs, targets); err != nil {
		return nil, err
	}
	p, y := probs.Data(), targets.Data()
	n := float64(len(p))
	g := make([]float64, len(p))
	for i := range p {
		q := math.Min(math.Max(p[i], eps), 1-eps)
		g[i] = (q - y[i]) / (q * (1 - q)) / n
	}
	return layout.FromData(g, probs.Shape()...)
}

// Accuracy is the fraction of entries where probs >= 0.5 agrees with targets >= 0.5.
func Accuracy(probs, targets *layout.Tensor) (float64, error) {
	if err := sameShape(probs, targets); err != nil {
		return 0, err
	}
	p, y := probs.Data(), targets.Data()
	if len(p) == 0 {
		return 0, nil
	}
	hits := 0
	for i := range p {
		if (p[i] >= 0.5) == (y[i] >= 0.5) {
			hits++
		}
	}
	return float64(hits) / float64(len(p)), nil
}

func sameShape(a, b *layout.Tensor) error {
	if a == nil || b == nil {
		return fmt.Errorf("missing probabilities or targets: %w", concept.ErrShape)
	}
	return layout.ExpectShape("targets", b, a.Shape()...)
}

// #endregion metrics
