package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/danielpatrickdp/qconcept/internal/circuit"
	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
	"github.com/danielpatrickdp/qconcept/internal/qsim"
)

// #region options
type options struct {
	seed      int64
	initScale float64
	entangler circuit.Gate
	ranges    []int
}

// Option configures New.
type Option func(*options)

// WithSeed fixes the embedding initialisation seed.
func WithSeed(seed int64) Option { return func(o *options) { o.seed = seed } }

// WithInitScale draws initial angles uniformly from [0, scale). Zero keeps the table at zero.
func WithInitScale(scale float64) Option { return func(o *options) { o.initScale = scale } }

// WithEntangler overrides the per-kind default two-qubit gate.
func WithEntangler(g circuit.Gate) Option { return func(o *options) { o.entangler = g } }

// WithRanges sets custom entangler ranges, one per entangling layer.
func WithRanges(r []int) Option { return func(o *options) { o.ranges = append([]int(nil), r...) } }

// #endregion options

// #region model
// Model is the hybrid concept model: a concept embedding table evaluated
// against encoded instances through the concept circuit.
type Model struct {
	cfg       *concept.Config
	circuit   *circuit.Circuit
	device    *qsim.Device
	embedding *layout.Tensor
}

// New builds the circuit for cfg and an embedding table of shape
// (NumConcepts, EmbeddingDim).
func New(cfg *concept.Config, opts ...Option) (*Model, error) {
	o := options{seed: 1, initScale: 2 * math.Pi}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := circuit.FromConfig(cfg, o.entangler, o.ranges)
	if err != nil {
		return nil, fmt.Errorf("build circuit: %w", err)
	}
	dev, err := qsim.NewDevice(c.NumWires)
	if err != nil {
		return nil, err
	}

	table := layout.New(cfg.NumConcepts(), cfg.EmbeddingDim())
	if o.initScale != 0 {
		rng := rand.New(rand.NewSource(o.seed))
		for r := 0; r < cfg.NumConcepts(); r++ {
			for k := 0; k < cfg.EmbeddingDim(); k++ {
				table.Set(rng.Float64()*o.initScale, r, k)
			}
		}
	}
	return &Model{cfg: cfg, circuit: c, device: dev, embedding: table}, nil
}

func (m *Model) Config() *concept.Config   { return m.cfg }
func (m *Model) Circuit() *circuit.Circuit { return m.circuit }

// Embedding returns a copy of the embedding table.
func (m *Model) Embedding() *layout.Tensor { return m.embedding.Clone() }

// SetEmbedding replaces the embedding table; the shape must match.
func (m *Model) SetEmbedding(t *layout.Tensor) error {
	if err := layout.ExpectShape("embedding table", t, m.cfg.NumConcepts(), m.cfg.EmbeddingDim()); err != nil {
		return err
	}
	m.embedding = t.Clone()
	return nil
}

// #endregion model

// #region forward
// PrepareInstances accepts (B, D, 3) or a multi-image batch (B, K, D/K, 3)
// and returns (B, D, 3).
func (m *Model) PrepareInstances(batch *layout.Tensor) (*layout.Tensor, error) {
	if batch != nil && batch.Rank() == 4 {
		if k := m.cfg.ImagesPerInstance(); batch.Dim(1) != k {
			return nil, fmt.Errorf("multi-image batch has %d images, want %d: %w", batch.Dim(1), k, concept.ErrShape)
		}
		flat, err := layout.FlattenImages(batch)
		if err != nil {
			return nil, err
		}
		batch = flat
	}
	if batch == nil || batch.Rank() != 3 {
		return nil, fmt.Errorf("instances: want (batch, %d, %d): %w", m.cfg.NumInstanceDomains(), layout.Weights, concept.ErrShape)
	}
	return batch, layout.ExpectShape("instances", batch, batch.Dim(0), m.cfg.NumInstanceDomains(), layout.Weights)
}

func (m *Model) encode(instances *layout.Tensor, indices [][]int) (*layout.Tensor, *layout.Tensor, error) {
	batch, err := m.PrepareInstances(instances)
	if err != nil {
		return nil, nil, err
	}
	inst, err := layout.EncodeInstances(m.cfg, batch)
	if err != nil {
		return nil, nil, err
	}
	conc, err := layout.EncodeConcepts(m.cfg, m.embedding, indices)
	if err != nil {
		return nil, nil, err
	}
	return inst, conc, nil
}

// Expectations returns the raw Z expectations (B, Cd) in [-1, 1].
// indices holds local property indices per concept domain and is only
// read for Product concepts.
func (m *Model) Expectations(instances *layout.Tensor, indices [][]int) (*layout.Tensor, error) {
	inst, conc, err := m.encode(instances, indices)
	if err != nil {
		return nil, err
	}
	return m.device.Execute(m.circuit, inst, conc)
}

// Forward returns per-concept-domain probabilities (B, Cd) in [0, 1].
func (m *Model) Forward(instances *layout.Tensor, indices [][]int) (*layout.Tensor, error) {
	exp, err := m.Expectations(instances, indices)
	if err != nil {
		return nil, err
	}
	return Probabilities(exp), nil
}

// Probabilities rescales expectations with (v + 1) / 2.
func Probabilities(exp *layout.Tensor) *layout.Tensor {
	data := exp.Data()
	for i, v := range data {
		data[i] = (v + 1) / 2
	}
	out, _ := layout.FromData(data, exp.Shape()...)
	return out
}

// Predict thresholds Forward at 0.5.
func (m *Model) Predict(instances *layout.Tensor, indices [][]int) ([][]bool, error) {
	probs, err := m.Forward(instances, indices)
	if err != nil {
		return nil, err
	}
	out := make([][]bool, probs.Dim(0))
	for i := range out {
		out[i] = make([]bool, probs.Dim(1))
		for j := range out[i] {
			out[i][j] = probs.At(i, j) >= 0.5
		}
	}
	return out, nil
}

// #endregion forward

// #region backward
// EmbeddingGradient maps dLoss/dProbability (B, Cd) onto the embedding
// table, returning a tensor shaped like Embedding. Product gradients are
// scattered onto the rows addressed by AddOffset.
func (m *Model) EmbeddingGradient(instances *layout.Tensor, indices [][]int, upstream *layout.Tensor) (*layout.Tensor, error) {
	inst, conc, err := m.encode(instances, indices)
	if err != nil {
		return nil, err
	}
	if upstream == nil {
		return nil, fmt.Errorf("missing upstream gradient: %w", concept.ErrShape)
	}
	// d prob / d exp = 1/2
	half := upstream.Clone()
	if half.Rank() == 2 {
		for i := 0; i < half.Dim(0); i++ {
			for j := 0; j < half.Dim(1); j++ {
				half.Set(half.At(i, j)/2, i, j)
			}
		}
	}
	g, err := m.device.ConceptGradient(m.circuit, inst, conc, half)
	if err != nil {
		return nil, err
	}

	if m.cfg.Kind() != concept.KindProduct {
		return layout.DecodeSharedConcept(m.cfg, g)
	}
	out := layout.New(m.cfg.NumConcepts(), m.cfg.EmbeddingDim())
	for i, row := range indices {
		flat, err := m.cfg.AddOffset(row)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		for j, r := range flat {
			for k := 0; k < layout.Weights; k++ {
				out.Add(g.At(j, k, i), r, k)
			}
		}
	}
	return out, nil
}

// #endregion backward
