package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

func tensor(t *testing.T, data []float64, shape ...int) *layout.Tensor {
	t.Helper()
	out, err := layout.FromData(data, shape...)
	require.NoError(t, err)
	return out
}

func metric(t *testing.T, r EvalResult, name string) EvalMetric {
	t.Helper()
	for _, m := range r.Metrics {
		if m.Name == name {
			return m
		}
	}
	require.Failf(t, "missing metric", "%s not in %+v", name, r.Metrics)
	return EvalMetric{}
}

func TestEvalPassesConfidentCorrectPredictions(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	probs := tensor(t, []float64{0.9, 0.1, 0.8, 0.3}, 2, 2)
	targets := tensor(t, []float64{1, 0, 1, 0}, 2, 2)

	r, err := h.Run(probs, targets)
	require.NoError(t, err)
	require.True(t, r.Passed, r.Reason)
	assert.Equal(t, 1.0, r.Accuracy)
	assert.Equal(t, 0.9, metric(t, r, "prob_max").Value)
	assert.Equal(t, "all checks passed", r.Reason)
	assert.Nil(t, r.IndexAccuracy)
}

func TestEvalFailsLowAccuracy(t *testing.T) {
	h := NewEvalHarness(EvalConfig{MinAccuracy: 0.75})
	probs := tensor(t, []float64{0.9, 0.9, 0.1, 0.1}, 4, 1)
	targets := tensor(t, []float64{1, 0, 1, 0}, 4, 1)

	r, err := h.Run(probs, targets)
	require.NoError(t, err)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Reason, "accuracy 0.5000 below 0.7500")
}

func TestEvalFailsOutOfRangeAndLoss(t *testing.T) {
	h := NewEvalHarness(EvalConfig{MinAccuracy: 0, MaxLoss: 0.01})
	probs := tensor(t, []float64{1.5, 0.4}, 2)
	targets := tensor(t, []float64{1, 1}, 2)

	r, err := h.Run(probs, targets)
	require.NoError(t, err)
	assert.False(t, r.Passed)
	assert.Regexp(t, `^eval failed: 2 checks`, r.Reason)
}

func TestEvalShapeMismatch(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	_, err := h.Run(tensor(t, []float64{0.5, 0.5}, 2), tensor(t, []float64{1, 0}, 1, 2))
	assert.ErrorIs(t, err, concept.ErrShape)
}

func TestRunProductScoresLabelAndIndices(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	label := tensor(t, []float64{0.95, 0.9, 0.05}, 3, 1)
	targets := tensor(t, []float64{1, 1, 0}, 3, 1)

	r, err := h.RunProduct(label, targets, []float64{1, 0.5})
	require.NoError(t, err)
	require.True(t, r.Passed, r.Reason)
	assert.Equal(t, 1.0, r.Accuracy)
	assert.Equal(t, []float64{1, 0.5}, r.IndexAccuracy)
	assert.Equal(t, 1.0, metric(t, r, "label_accuracy").Value)
	assert.True(t, metric(t, r, "index_accuracy_1").Pass)

	strict := NewEvalHarness(EvalConfig{MinAccuracy: 0.75})
	r, err = strict.RunProduct(label, targets, []float64{1, 0.5})
	require.NoError(t, err)
	assert.False(t, r.Passed)
	assert.False(t, metric(t, r, "index_accuracy_1").Pass)
	assert.Equal(t, "eval failed: index accuracy 0.5000 of concept domain 1 below 0.7500", r.Reason)
}

func TestRunProductWithoutIndices(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	r, err := h.RunProduct(tensor(t, []float64{0.2}, 1, 1), tensor(t, []float64{0}, 1, 1), nil)
	require.NoError(t, err)
	assert.True(t, r.Passed, r.Reason)
	assert.Nil(t, r.IndexAccuracy)
	assert.Len(t, r.Metrics, 4)
}

func TestRunProductRejectsPerDomainProbabilities(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	probs := tensor(t, []float64{0.9, 0.1}, 1, 2)
	_, err := h.RunProduct(probs, tensor(t, []float64{1, 0}, 1, 2), nil)
	assert.ErrorIs(t, err, concept.ErrShape)
}
