package circuit

import (
	"fmt"
	"testing"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers
func config(t *testing.T, d int, ct concept.ConceptType, domains ...string) *concept.Config {
	t.Helper()
	decl := concept.Declaration{}
	for i := 0; i < d; i++ {
		decl.InstanceDomains = append(decl.InstanceDomains, fmt.Sprintf("dom%d", i))
		decl.Properties = append(decl.Properties, []string{"a", "b", "c"})
	}
	cfg, err := concept.NewConfig(decl, ct, domains...)
	require.NoError(t, err)
	return cfg
}

func entanglers(c *Circuit) int { return c.Count(GateCNOT) + c.Count(GateCZ) }

// #endregion helpers

// #region product
func TestBuildProduct(t *testing.T) {
	c, err := FromConfig(config(t, 2, concept.Product{}), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, c.NumWires)
	assert.Equal(t, []int{0, 1}, c.Measured)
	require.Len(t, c.Ops, 4)
	assert.Equal(t, Op{Gate: GateRot, Wires: []int{0}, Param: Param{Source: SourceInstance, Layer: -1, Slot: 0}}, c.Ops[0])
	assert.Equal(t, Op{Gate: GateRotInverse, Wires: []int{1}, Param: Param{Source: SourceConcept, Layer: -1, Slot: 1}}, c.Ops[3])
	assert.Zero(t, entanglers(c))
	assert.Equal(t, []int{2, 3, 5}, c.ConceptShape(5))
}

func TestBuildProductSubsetMeasuresConceptWires(t *testing.T) {
	c, err := FromConfig(config(t, 3, concept.Product{}, "dom2"), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, c.Measured)
	assert.Equal(t, 3, c.Count(GateRot))
	assert.Equal(t, 1, c.Count(GateRotInverse))
	assert.Equal(t, GateRotInverse, c.Ops[3].Gate)
	assert.Equal(t, []int{2}, c.Ops[3].Wires)
}

// #endregion product

// #region domain-only
func TestDomainOnlyTwoWiresOneEntanglerPerLayer(t *testing.T) {
	for _, layers := range []int{1, 2, 5} {
		c, err := FromConfig(config(t, 2, concept.DomainOnly{Depth: layers}), 0, nil)
		require.NoError(t, err)
		assert.Equal(t, layers, entanglers(c), "layers=%d", layers)
		assert.Equal(t, layers, c.EntanglingLayers())
	}
}

func TestDomainOnlySingleWireNoEntangler(t *testing.T) {
	for _, layers := range []int{1, 3} {
		c, err := FromConfig(config(t, 3, concept.DomainOnly{Depth: layers}, "dom1"), 0, nil)
		require.NoError(t, err)
		assert.Zero(t, entanglers(c))
		// 3 instance rotations + one concept rotation per layer
		assert.Equal(t, 3+layers, c.Count(GateRot))
		assert.Equal(t, []int{1}, c.Measured)
	}
}

func TestDomainOnlyRingTopology(t *testing.T) {
	c, err := FromConfig(config(t, 3, concept.DomainOnly{Depth: 3}), GateCNOT, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1}, c.Ranges())
	assert.Equal(t, 9, c.Count(GateCNOT))

	var pairs [][]int
	for _, op := range c.Ops {
		if op.Gate == GateCNOT {
			pairs = append(pairs, op.Wires)
		}
	}
	assert.Equal(t, [][]int{
		{0, 1}, {1, 2}, {2, 0},
		{0, 2}, {1, 0}, {2, 1},
		{0, 1}, {1, 2}, {2, 0},
	}, pairs)
	assert.Equal(t, []int{3, 3, 3}, c.ConceptShape(7))
}

func TestDomainOnlyLayerParams(t *testing.T) {
	c, err := FromConfig(config(t, 2, concept.DomainOnly{Depth: 2}), 0, nil)
	require.NoError(t, err)
	// instance rots, then [rot rot cz] twice
	require.Len(t, c.Ops, 2+2*3)
	assert.Equal(t, Param{Source: SourceConcept, Layer: 1, Slot: 1}, c.Ops[6].Param)
	assert.Equal(t, GateCZ, c.Ops[7].Gate)
}

// #endregion domain-only

// #region general
func TestBuildGeneral(t *testing.T) {
	c, err := FromConfig(config(t, 2, concept.General{Depth: 1}), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, c.NumWires)
	assert.Equal(t, []int{2, 3}, c.Measured)
	assert.Equal(t, GateCNOT, c.Entangler)
	assert.Equal(t, 2, c.EntanglingLayers())
	assert.Equal(t, []int{2, 2, 3}, c.ConceptShape(9))
	// 4-wire block, ring of 4 per layer, 2 layers
	assert.Equal(t, 8, c.Count(GateCNOT))

	// layer 0 rotates concept wires, layer 1 the ancillas
	var rotated [][]int
	for _, op := range c.Ops {
		if op.Gate == GateRot && op.Param.Source == SourceConcept {
			rotated = append(rotated, []int{op.Param.Layer, op.Wires[0]})
		}
	}
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 2}, {1, 3}}, rotated)
}

func TestGeneralTwoWireBlockOneEntanglerPerLayer(t *testing.T) {
	for _, layers := range []int{1, 3} {
		c, err := FromConfig(config(t, 2, concept.General{Depth: layers}, "dom0"), GateCZ, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, c.NumWires)
		assert.Equal(t, 2*layers, c.Count(GateCZ))
		assert.Equal(t, []int{2}, c.Measured)
	}
}

// #endregion general

// #region errors
func TestRangesRejectZeroModN(t *testing.T) {
	_, err := Ranges(3, 2, []int{1, 3})
	assert.ErrorIs(t, err, concept.ErrConfig)
	_, err = Ranges(2, 1, []int{4})
	assert.ErrorIs(t, err, concept.ErrConfig)
	_, err = Ranges(3, 2, []int{1})
	assert.ErrorIs(t, err, concept.ErrConfig)

	_, err = EntanglingLayers([]int{0, 1, 2}, 1, GateCNOT, []int{6})
	assert.ErrorIs(t, err, concept.ErrConfig)

	_, err = FromConfig(config(t, 3, concept.DomainOnly{Depth: 2}), 0, []int{2, 3})
	assert.ErrorIs(t, err, concept.ErrConfig)

	// Every range is 0 mod 1, so a one-wire block rejects any custom range.
	_, err = Ranges(1, 2, []int{3, 5})
	assert.ErrorIs(t, err, concept.ErrConfig)
	_, err = FromConfig(config(t, 2, concept.DomainOnly{Depth: 1}, "dom1"), 0, []int{7})
	assert.ErrorIs(t, err, concept.ErrConfig)
	r1, err := Ranges(1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, r1)

	r, err := Ranges(4, 3, []int{1, 2, -1})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, -1}, r)
}

func TestCustomRangesApplied(t *testing.T) {
	ops, err := EntanglingLayers([]int{4, 5, 6}, 1, GateCZ, []int{2})
	require.NoError(t, err)
	var pairs [][]int
	for _, op := range ops {
		if op.Gate == GateCZ {
			pairs = append(pairs, op.Wires)
		}
	}
	assert.Equal(t, [][]int{{4, 6}, {5, 4}, {6, 5}}, pairs)
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]Spec{
		"nil type":          {InstanceWires: []int{0}, ConceptWires: []int{0}},
		"no concept wires":  {Type: concept.Product{}, InstanceWires: []int{0}},
		"foreign concept":   {Type: concept.Product{}, InstanceWires: []int{0}, ConceptWires: []int{1}},
		"duplicate":         {Type: concept.Product{}, InstanceWires: []int{0, 0}, ConceptWires: []int{0}},
		"bad entangler":     {Type: concept.DomainOnly{Depth: 1}, InstanceWires: []int{0, 1}, ConceptWires: []int{0, 1}, Entangler: GateRot},
		"zero layers":       {Type: concept.General{}, InstanceWires: []int{0}, ConceptWires: []int{0}},
		"ancilla overlap":   {Type: concept.General{Depth: 1}, InstanceWires: []int{0, 1}, ConceptWires: []int{0}, AncillaWires: []int{1}},
		"ancilla count":     {Type: concept.General{Depth: 1}, InstanceWires: []int{0, 1}, ConceptWires: []int{0}, AncillaWires: []int{2, 3}},
		"product ranges":    {Type: concept.Product{}, InstanceWires: []int{0}, ConceptWires: []int{0}, Ranges: []int{1}},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(spec)
			assert.ErrorIs(t, err, concept.ErrConfig)
		})
	}
}

func TestCheckParams(t *testing.T) {
	c, err := FromConfig(config(t, 2, concept.General{Depth: 1}), 0, nil)
	require.NoError(t, err)

	b, err := c.CheckParams(layout.New(2, 3, 4), layout.New(2, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 4, b)

	_, err = c.CheckParams(layout.New(3, 3, 4), layout.New(2, 2, 3))
	assert.ErrorIs(t, err, concept.ErrShape)
	_, err = c.CheckParams(layout.New(2, 3, 4), layout.New(1, 2, 3))
	assert.ErrorIs(t, err, concept.ErrShape)
	_, err = c.CheckParams(nil, layout.New(2, 2, 3))
	assert.ErrorIs(t, err, concept.ErrShape)

	p, err := FromConfig(config(t, 2, concept.Product{}), 0, nil)
	require.NoError(t, err)
	_, err = p.CheckParams(layout.New(2, 3, 4), layout.New(2, 3, 5))
	assert.ErrorIs(t, err, concept.ErrShape)
}

// #endregion errors
