package model

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelledProduct gives label k of every domain the angle k·2π/3, so an
// instance rotated by the same angle matches exactly that label.
func labelledProduct(t *testing.T) *Model {
	t.Helper()
	cfg := colorShape(t, concept.Product{}, 1)
	m, err := New(cfg, WithInitScale(0))
	require.NoError(t, err)
	table := layout.New(cfg.NumConcepts(), cfg.EmbeddingDim())
	for r := 0; r < cfg.NumConcepts(); r++ {
		table.Set(float64(r%3)*2*math.Pi/3, r, 1)
	}
	require.NoError(t, m.SetEmbedding(table))
	return m
}

func drawn(labels ...[2]int) *layout.Tensor {
	out := layout.New(len(labels), 2, layout.Weights)
	for i, l := range labels {
		out.Set(float64(l[0])*2*math.Pi/3, i, 0, 1)
		out.Set(float64(l[1])*2*math.Pi/3, i, 1, 1)
	}
	return out
}

func TestProductLabel(t *testing.T) {
	probs, err := layout.FromData([]float64{0.5, 0.8, 1, 0.2}, 2, 2)
	require.NoError(t, err)
	label, err := ProductLabel(probs)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, label.Shape())
	assert.InDelta(t, 0.4, label.At(0, 0), 1e-12)
	assert.InDelta(t, 0.2, label.At(1, 0), 1e-12)

	_, err = ProductLabel(layout.New(3))
	assert.ErrorIs(t, err, concept.ErrShape)
}

func TestForwardProductAndLoss(t *testing.T) {
	m := labelledProduct(t)
	instances := drawn([2]int{1, 2}, [2]int{0, 1})

	label, err := m.ForwardProduct(instances, [][]int{{1, 2}, {0, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, label.At(0, 0), 1e-9)
	// shape differs by 2π/3: (1 + cos(2π/3)) / 2 = 0.25
	assert.InDelta(t, 0.25, label.At(1, 0), 1e-9)

	pred, err := m.PredictProduct(instances, [][]int{{1, 2}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, pred)

	loss, err := m.ProductLoss(instances, [][]int{{1, 2}, {0, 0}}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(0.75)/2, loss, 1e-6)

	_, err = m.ProductLoss(instances, [][]int{{1, 2}, {0, 0}}, []float64{1})
	assert.ErrorIs(t, err, concept.ErrShape)
}

func TestIndexAccuracyRecoversDrawnProperties(t *testing.T) {
	m := labelledProduct(t)
	cfg := m.Config()
	instances := drawn([2]int{1, 2}, [2]int{0, 1})

	var rows [][]int
	for _, local := range [][]int{{1, 2}, {0, 1}} {
		flat, err := cfg.AddOffset(local)
		require.NoError(t, err)
		rows = append(rows, flat)
	}
	assert.Equal(t, [][]int{{1, 5}, {0, 4}}, rows)

	acc, err := m.IndexAccuracy(instances, rows)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, acc)

	// Second item claims blue but was drawn red.
	acc, err = m.IndexAccuracy(instances, [][]int{{1, 5}, {1, 4}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1}, acc)
}

func TestIndexAccuracyErrors(t *testing.T) {
	m := labelledProduct(t)
	instances := drawn([2]int{1, 2})

	_, err := m.IndexAccuracy(instances, [][]int{{3, 5}})
	assert.ErrorIs(t, err, concept.ErrIndex, "color row outside the color block")

	_, err = m.IndexAccuracy(instances, [][]int{{1, 5}, {0, 4}})
	assert.ErrorIs(t, err, concept.ErrShape)

	_, err = m.IndexAccuracy(instances, [][]int{{1}})
	assert.ErrorIs(t, err, concept.ErrShape)

	shared, err := New(colorShape(t, concept.DomainOnly{Depth: 1}, 1))
	require.NoError(t, err)
	_, err = shared.IndexAccuracy(instances, [][]int{{1, 5}})
	assert.ErrorIs(t, err, concept.ErrConfig)
}
