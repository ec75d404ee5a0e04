package gate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/qconcept/internal/eval"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

func makeTable(t *testing.T, vals ...float64) *layout.Tensor {
	t.Helper()
	out, err := layout.FromData(vals, 2, len(vals)/2)
	require.NoError(t, err)
	return out
}

func TestGateCommitOnUnchangedTable(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	old := makeTable(t, 0, 0, 0, 0)
	decision := g.Evaluate(old, old.Clone(), nil, nil)

	require.Equal(t, "commit", decision.Action, decision.Reason)
	assert.False(t, decision.Vetoed)
	assert.Equal(t, 0.75, decision.SoftScore)
}

func TestGateCommitWithoutActiveTable(t *testing.T) {
	g := NewGate(GateConfig{MaxDeltaNorm: 0.1})
	decision := g.Evaluate(nil, makeTable(t, 3, 4, 5, 6), nil, &eval.EvalResult{Passed: true, Accuracy: 1})
	require.Equal(t, "commit", decision.Action, decision.Reason)
	assert.Equal(t, 1.0, decision.SoftScore)
}

func TestGateRejectShapeMismatch(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	decision := g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 0, 0, 0, 0, 0, 0), nil, nil)
	require.True(t, decision.Vetoed)
	assert.Equal(t, VetoShape, decision.VetoSignals[0].Type)
}

func TestGateRejectNonFinite(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	decision := g.Evaluate(nil, makeTable(t, 0, math.NaN(), 0, 0), nil, nil)
	require.Equal(t, "reject", decision.Action)
	assert.Equal(t, VetoNonFinite, decision.VetoSignals[0].Type)
}

func TestGateRejectDeltaNorm(t *testing.T) {
	g := NewGate(GateConfig{MaxDeltaNorm: 1})
	decision := g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 3, 4, 0, 0), nil, nil)
	require.Equal(t, "reject", decision.Action)
	assert.InDelta(t, 5, decision.DeltaNorm, 1e-12)
	assert.Equal(t, VetoDeltaNorm, decision.VetoSignals[0].Type)
}

func TestGateDeltaNormWithinCap(t *testing.T) {
	g := NewGate(GateConfig{MaxDeltaNorm: 10})
	decision := g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 3, 4, 0, 0), nil, nil)
	require.Equal(t, "commit", decision.Action, decision.Reason)
	assert.InDelta(t, 0.5*0.5+0.25, decision.SoftScore, 1e-12)
}

func TestGateRejectFailedEval(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	failed := &eval.EvalResult{Passed: false, Reason: "eval failed: accuracy 0.2000 below 0.5000", Accuracy: 0.2}
	decision := g.Evaluate(nil, makeTable(t, 0, 0, 0, 0), nil, failed)
	require.Equal(t, "reject", decision.Action)
	assert.Equal(t, VetoEvalFailed, decision.VetoSignals[0].Type)
}

func TestGateRejectAccuracyRegression(t *testing.T) {
	g := NewGate(GateConfig{MaxAccuracyDrop: 0.05})
	oldEval := &eval.EvalResult{Passed: true, Accuracy: 0.9}
	newEval := &eval.EvalResult{Passed: true, Accuracy: 0.8}
	decision := g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 0.1, 0, 0, 0), oldEval, newEval)
	require.Equal(t, "reject", decision.Action)
	assert.Equal(t, VetoRegression, decision.VetoSignals[0].Type)

	newEval.Accuracy = 0.87
	decision = g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 0.1, 0, 0, 0), oldEval, newEval)
	assert.Equal(t, "commit", decision.Action, "small drop should commit: %s", decision.Reason)
}

func TestGateRejectIndexAccuracyRegression(t *testing.T) {
	g := NewGate(GateConfig{MaxAccuracyDrop: 0.05})
	oldEval := &eval.EvalResult{Passed: true, Accuracy: 1, IndexAccuracy: []float64{1, 0.9}}
	newEval := &eval.EvalResult{Passed: true, Accuracy: 1, IndexAccuracy: []float64{1, 0.6}}
	decision := g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 0.1, 0, 0, 0), oldEval, newEval)
	require.Equal(t, "reject", decision.Action)
	require.Len(t, decision.VetoSignals, 1)
	assert.Equal(t, VetoRegression, decision.VetoSignals[0].Type)
	assert.Contains(t, decision.Reason, "concept domain 1")

	// Drops within MaxAccuracyDrop commit.
	newEval.IndexAccuracy = []float64{0.97, 0.88}
	decision = g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 0.1, 0, 0, 0), oldEval, newEval)
	assert.Equal(t, "commit", decision.Action, decision.Reason)

	// Different concept domains are not compared.
	newEval.IndexAccuracy = []float64{0}
	decision = g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 0.1, 0, 0, 0), oldEval, newEval)
	assert.Equal(t, "commit", decision.Action, decision.Reason)
}

func TestGateMultipleVetoes(t *testing.T) {
	g := NewGate(GateConfig{MaxDeltaNorm: 0.5})
	failed := &eval.EvalResult{Passed: false, Reason: "eval failed"}
	decision := g.Evaluate(makeTable(t, 0, 0, 0, 0), makeTable(t, 1, 0, 0, 0), nil, failed)
	assert.Len(t, decision.VetoSignals, 2)
}
