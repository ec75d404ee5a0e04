package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/qconcept/internal/eval"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// #region gate
// Gate decides whether a proposed embedding table may replace the active
// checkpoint.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then scores the proposal. old may be
// nil when there is no active table. The eval results are optional; a
// regression check needs both.
func (g *Gate) Evaluate(old, proposed *layout.Tensor, oldEval, newEval *eval.EvalResult) GateDecision {
	var vetoes []VetoSignal

	// --- Hard veto pass ---

	// 1. Shape
	if old != nil && !proposed.HasShape(old.Shape()...) {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoShape,
			Reason: fmt.Sprintf("proposed shape %v differs from active %v", proposed.Shape(), old.Shape()),
		})
		return reject(vetoes, 0)
	}

	// 2. NaN or Inf angles
	for i, v := range proposed.Data() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vetoes = append(vetoes, VetoSignal{
				Type:   VetoNonFinite,
				Reason: fmt.Sprintf("value %d is %v", i, v),
			})
			return reject(vetoes, 0)
		}
	}

	// 3. Delta norm exceeds cap
	var deltaNorm float64
	if old != nil {
		deltaNorm = distance(old.Data(), proposed.Data())
	}
	if g.config.MaxDeltaNorm > 0 && deltaNorm > g.config.MaxDeltaNorm {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDeltaNorm,
			Reason: fmt.Sprintf("delta norm %.4f exceeds cap %.4f", deltaNorm, g.config.MaxDeltaNorm),
		})
	}

	// 4. Evaluation of the proposal failed
	if newEval != nil && !newEval.Passed {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoEvalFailed,
			Reason: newEval.Reason,
		})
	}

	// 5. Accuracy regression against the active table
	if oldEval != nil && newEval != nil && newEval.Accuracy < oldEval.Accuracy-g.config.MaxAccuracyDrop {
		vetoes = append(vetoes, VetoSignal{
			Type: VetoRegression,
			Reason: fmt.Sprintf("accuracy %.4f dropped from %.4f by more than %.4f",
				newEval.Accuracy, oldEval.Accuracy, g.config.MaxAccuracyDrop),
		})
	}

	// 6. Product concepts: index recovery regression per concept domain
	if oldEval != nil && newEval != nil && len(oldEval.IndexAccuracy) == len(newEval.IndexAccuracy) {
		for j, was := range oldEval.IndexAccuracy {
			if now := newEval.IndexAccuracy[j]; now < was-g.config.MaxAccuracyDrop {
				vetoes = append(vetoes, VetoSignal{
					Type: VetoRegression,
					Reason: fmt.Sprintf("index accuracy of concept domain %d %.4f dropped from %.4f by more than %.4f",
						j, now, was, g.config.MaxAccuracyDrop),
				})
			}
		}
	}

	if len(vetoes) > 0 {
		return reject(vetoes, deltaNorm)
	}

	// --- Soft scoring ---
	softScore := computeSoftScore(deltaNorm, g.config.MaxDeltaNorm, newEval)

	return GateDecision{
		Action:    "commit",
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		DeltaNorm: deltaNorm,
		SoftScore: softScore,
	}
}

// #endregion gate

// #region helpers
func reject(vetoes []VetoSignal, deltaNorm float64) GateDecision {
	return GateDecision{
		Action:      "reject",
		Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
		Vetoed:      true,
		VetoSignals: vetoes,
		DeltaNorm:   deltaNorm,
	}
}

// distance is the L2 norm of b - a.
func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := b[i] - a[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// computeSoftScore weighs stability (0.5) against accuracy (0.5). Without
// a cap any change counts as half stable; without an eval, accuracy
// contributes a neutral 0.25.
func computeSoftScore(deltaNorm, maxDelta float64, newEval *eval.EvalResult) float64 {
	var score float64
	switch {
	case deltaNorm == 0:
		score += 0.5
	case maxDelta > 0:
		score += 0.5 * (1 - deltaNorm/maxDelta)
	default:
		score += 0.25
	}
	if newEval != nil {
		score += 0.5 * newEval.Accuracy
	} else {
		score += 0.25
	}
	return score
}

// #endregion helpers
