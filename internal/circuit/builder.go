package circuit

import (
	"fmt"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// #region spec
// Spec is everything Build needs. AncillaWires only applies to General and
// defaults to the wires following the instance wires. A zero Entangler
// selects DefaultEntangler; nil Ranges selects the default range rule.
type Spec struct {
	Type          concept.ConceptType
	InstanceWires []int
	ConceptWires  []int
	AncillaWires  []int
	Entangler     Gate
	Ranges        []int
}

// SpecFromConfig reads the wire layout of cfg.
func SpecFromConfig(cfg *concept.Config) Spec {
	return Spec{
		Type:          cfg.Type(),
		InstanceWires: cfg.InstanceWires(),
		ConceptWires:  cfg.ConceptWires(),
		AncillaWires:  cfg.AncillaWires(),
	}
}

// #endregion spec

// #region circuit
// Circuit is a declarative gate list. It is evaluated by a simulator and
// never mutated after Build.
type Circuit struct {
	Kind      concept.Kind
	NumWires  int
	Ops       []Op
	Measured  []int
	Entangler Gate

	instanceSlots int
	conceptSlots  int
	conceptRows   int
	ranges        []int
}

// InstanceShape is the expected instance tensor shape for a batch of b.
func (c *Circuit) InstanceShape(b int) []int { return []int{c.instanceSlots, layout.Weights, b} }

// ConceptShape is the expected concept tensor shape for a batch of b.
func (c *Circuit) ConceptShape(b int) []int {
	if c.Kind == concept.KindProduct {
		return []int{c.conceptSlots, layout.Weights, b}
	}
	return []int{c.conceptRows, c.conceptSlots, layout.Weights}
}

// Ranges returns the entangler range used by each entangling layer.
func (c *Circuit) Ranges() []int { return append([]int(nil), c.ranges...) }

// EntanglingLayers is the number of entangling layers in the concept block.
func (c *Circuit) EntanglingLayers() int { return c.conceptRows }

// Count returns how many ops apply gate g.
func (c *Circuit) Count(g Gate) int {
	n := 0
	for _, op := range c.Ops {
		if op.Gate == g {
			n++
		}
	}
	return n
}

// CheckParams validates both parameter tensors against the circuit and
// returns the batch size. It runs before any gate is simulated.
func (c *Circuit) CheckParams(instance, conceptParams *layout.Tensor) (int, error) {
	if instance == nil || instance.Rank() != 3 {
		return 0, layout.ExpectShape("instance params", instance, c.InstanceShape(-1)...)
	}
	b := instance.Dim(2)
	if err := layout.ExpectShape("instance params", instance, c.InstanceShape(b)...); err != nil {
		return 0, err
	}
	if err := layout.ExpectShape("concept params", conceptParams, c.ConceptShape(b)...); err != nil {
		return 0, err
	}
	return b, nil
}

// #endregion circuit

// #region build
// Build validates spec and emits the gate list for its concept type:
//
//   - Product: instance Rot per instance wire, inverse concept Rot per
//     concept wire, Z measured on the concept wires.
//   - DomainOnly: instance Rot, then L entangling layers over the concept
//     wires, Z measured on the concept wires.
//   - General: instance Rot, then 2L entangling layers over the concept
//     wires followed by the ancilla wires. Even layers rotate the concept
//     wires, odd layers the ancilla wires, and every layer entangles the
//     whole block. Z measured on the ancilla wires.
func Build(spec Spec) (*Circuit, error) {
	if spec.Type == nil {
		return nil, fmt.Errorf("nil concept type: %w", concept.ErrConfig)
	}
	kind := spec.Type.Kind()
	if _, err := concept.NewConceptType(kind, spec.Type.Layers()); err != nil {
		return nil, err
	}
	entangler := spec.Entangler
	if entangler == 0 {
		entangler = DefaultEntangler(kind)
	}
	if !entangler.IsEntangler() {
		return nil, fmt.Errorf("%v is not an entangling gate: %w", entangler, concept.ErrConfig)
	}
	if len(spec.InstanceWires) == 0 {
		return nil, fmt.Errorf("no instance wires: %w", concept.ErrConfig)
	}
	if len(spec.ConceptWires) == 0 {
		return nil, fmt.Errorf("no concept wires: %w", concept.ErrConfig)
	}
	if err := distinct("instance", spec.InstanceWires); err != nil {
		return nil, err
	}
	if err := distinct("concept", spec.ConceptWires); err != nil {
		return nil, err
	}
	onInstance := make(map[int]bool, len(spec.InstanceWires))
	for _, w := range spec.InstanceWires {
		onInstance[w] = true
	}
	for _, w := range spec.ConceptWires {
		if !onInstance[w] {
			return nil, fmt.Errorf("concept wire %d is not an instance wire: %w", w, concept.ErrConfig)
		}
	}

	c := &Circuit{
		Kind:          kind,
		Entangler:     entangler,
		instanceSlots: len(spec.InstanceWires),
		conceptSlots:  len(spec.ConceptWires),
	}

	for i, w := range spec.InstanceWires {
		c.Ops = append(c.Ops, Op{Gate: GateRot, Wires: []int{w}, Param: Param{Source: SourceInstance, Layer: -1, Slot: i}})
	}

	wires := append([]int(nil), spec.InstanceWires...)
	switch kind {
	case concept.KindProduct:
		if spec.Ranges != nil {
			return nil, fmt.Errorf("product circuits have no entangling layers: %w", concept.ErrConfig)
		}
		for j, w := range spec.ConceptWires {
			c.Ops = append(c.Ops, Op{Gate: GateRotInverse, Wires: []int{w}, Param: Param{Source: SourceConcept, Layer: -1, Slot: j}})
		}
		c.Measured = append([]int(nil), spec.ConceptWires...)

	case concept.KindDomainOnly:
		c.conceptRows = spec.Type.Layers()
		ops, err := EntanglingLayers(spec.ConceptWires, c.conceptRows, entangler, spec.Ranges)
		if err != nil {
			return nil, err
		}
		c.ranges, _ = Ranges(len(spec.ConceptWires), c.conceptRows, spec.Ranges)
		c.Ops = append(c.Ops, ops...)
		c.Measured = append([]int(nil), spec.ConceptWires...)

	case concept.KindGeneral:
		ancilla := spec.AncillaWires
		if ancilla == nil {
			ancilla = make([]int, len(spec.ConceptWires))
			for j := range ancilla {
				ancilla[j] = len(spec.InstanceWires) + j
			}
		}
		if len(ancilla) != len(spec.ConceptWires) {
			return nil, fmt.Errorf("%d ancilla wires for %d concept wires: %w",
				len(ancilla), len(spec.ConceptWires), concept.ErrConfig)
		}
		for _, w := range ancilla {
			if onInstance[w] {
				return nil, fmt.Errorf("ancilla wire %d overlaps an instance wire: %w", w, concept.ErrConfig)
			}
		}
		if err := distinct("ancilla", ancilla); err != nil {
			return nil, err
		}

		block := append(append([]int(nil), spec.ConceptWires...), ancilla...)
		c.conceptRows = 2 * spec.Type.Layers()
		ops, err := entanglingBlock(block, c.conceptRows, entangler, spec.Ranges, func(l int) []Op {
			targets := spec.ConceptWires
			if l%2 == 1 {
				targets = ancilla
			}
			rot := make([]Op, len(targets))
			for j, w := range targets {
				rot[j] = Op{Gate: GateRot, Wires: []int{w}, Param: Param{Source: SourceConcept, Layer: l, Slot: j}}
			}
			return rot
		})
		if err != nil {
			return nil, err
		}
		c.ranges, _ = Ranges(len(block), c.conceptRows, spec.Ranges)
		c.Ops = append(c.Ops, ops...)
		c.Measured = append([]int(nil), ancilla...)
		wires = append(wires, ancilla...)

	default:
		return nil, fmt.Errorf("unknown concept kind %v: %w", kind, concept.ErrConfig)
	}

	for _, w := range wires {
		if w < 0 {
			return nil, fmt.Errorf("negative wire %d: %w", w, concept.ErrConfig)
		}
		if w+1 > c.NumWires {
			c.NumWires = w + 1
		}
	}
	return c, nil
}

// FromConfig builds the circuit for cfg with the given entangler override
// (zero for the default) and optional custom ranges.
func FromConfig(cfg *concept.Config, entangler Gate, ranges []int) (*Circuit, error) {
	spec := SpecFromConfig(cfg)
	spec.Entangler = entangler
	spec.Ranges = ranges
	c, err := Build(spec)
	if err != nil {
		return nil, err
	}
	if c.NumWires != cfg.NumWires() {
		return nil, fmt.Errorf("circuit spans %d wires, config declares %d: %w", c.NumWires, cfg.NumWires(), concept.ErrConfig)
	}
	return c, nil
}

func distinct(name string, wires []int) error {
	seen := make(map[int]struct{}, len(wires))
	for _, w := range wires {
		if _, dup := seen[w]; dup {
			return fmt.Errorf("duplicate %s wire %d: %w", name, w, concept.ErrConfig)
		}
		seen[w] = struct{}{}
	}
	return nil
}

// #endregion build
