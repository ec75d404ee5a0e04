package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
	"github.com/danielpatrickdp/qconcept/internal/model"
)

// #region eval-harness
// EvalHarness scores model probabilities against 0/1 targets.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks probability bounds, accuracy and loss. Shape mismatches are
// returned as errors rather than failed checks.
func (h *EvalHarness) Run(probs, targets *layout.Tensor) (EvalResult, error) {
	s, err := h.score(probs, targets, "accuracy")
	if err != nil {
		return EvalResult{}, err
	}
	return s.result(), nil
}

// RunProduct scores a Product model's per-instance label (B, 1) against
// 0/1 labels, plus the per-concept-domain index accuracy from
// model.IndexAccuracy. Each domain must reach MinAccuracy. A nil
// indexAccuracy skips the index checks.
func (h *EvalHarness) RunProduct(label, targets *layout.Tensor, indexAccuracy []float64) (EvalResult, error) {
	if label == nil || label.Rank() != 2 || label.Dim(1) != 1 {
		return EvalResult{}, fmt.Errorf("product label: want (batch, 1): %w", concept.ErrShape)
	}
	s, err := h.score(label, targets, "label_accuracy")
	if err != nil {
		return EvalResult{}, err
	}
	for j, acc := range indexAccuracy {
		pass := acc >= h.config.MinAccuracy
		s.metrics = append(s.metrics, EvalMetric{Name: fmt.Sprintf("index_accuracy_%d", j), Value: acc, Pass: pass})
		if !pass {
			s.fail = append(s.fail, fmt.Sprintf("index accuracy %.4f of concept domain %d below %.4f", acc, j, h.config.MinAccuracy))
		}
	}
	r := s.result()
	if indexAccuracy != nil {
		r.IndexAccuracy = append([]float64(nil), indexAccuracy...)
	}
	return r, nil
}

type scored struct {
	acc, loss float64
	metrics   []EvalMetric
	fail      []string
}

func (h *EvalHarness) score(probs, targets *layout.Tensor, accName string) (*scored, error) {
	acc, err := model.Accuracy(probs, targets)
	if err != nil {
		return nil, fmt.Errorf("accuracy: %w", err)
	}
	loss, err := model.Loss(probs, targets)
	if err != nil {
		return nil, fmt.Errorf("loss: %w", err)
	}
	s := &scored{acc: acc, loss: loss}

	// 1. Probability bounds
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range probs.Data() {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	if probs.Len() == 0 {
		lo, hi = 0, 0
	}
	rangePass := lo >= -h.config.RangeSlack && hi <= 1+h.config.RangeSlack
	s.metrics = append(s.metrics,
		EvalMetric{Name: "prob_min", Value: lo, Pass: rangePass},
		EvalMetric{Name: "prob_max", Value: hi, Pass: rangePass},
	)
	if !rangePass {
		s.fail = append(s.fail, fmt.Sprintf("probabilities span [%.6f, %.6f] outside [0, 1]", lo, hi))
	}

	// 2. Accuracy
	accPass := acc >= h.config.MinAccuracy
	s.metrics = append(s.metrics, EvalMetric{Name: accName, Value: acc, Pass: accPass})
	if !accPass {
		s.fail = append(s.fail, fmt.Sprintf("accuracy %.4f below %.4f", acc, h.config.MinAccuracy))
	}

	// 3. Loss, informational unless MaxLoss is set
	lossPass := h.config.MaxLoss <= 0 || loss <= h.config.MaxLoss
	s.metrics = append(s.metrics, EvalMetric{Name: "loss", Value: loss, Pass: lossPass})
	if !lossPass {
		s.fail = append(s.fail, fmt.Sprintf("loss %.4f exceeds %.4f", loss, h.config.MaxLoss))
	}
	return s, nil
}

func (s *scored) result() EvalResult {
	reason := "all checks passed"
	if len(s.fail) == 1 {
		reason = fmt.Sprintf("eval failed: %s", s.fail[0])
	} else if len(s.fail) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(s.fail), s.fail[0])
	}

	return EvalResult{
		Passed:   len(s.fail) == 0,
		Accuracy: s.acc,
		Loss:     s.loss,
		Metrics:  s.metrics,
		Reason:   reason,
	}
}

// #endregion eval-harness
