package circuit

import (
	"fmt"

	"github.com/danielpatrickdp/qconcept/internal/concept"
)

// #region ranges
// Ranges returns the per-layer entangler offsets for an n-wire block.
// With custom nil the default r_l = (l mod (n-1)) + 1 is used. A custom
// sequence must have one entry per layer and no entry may be 0 mod n.
func Ranges(n, layers int, custom []int) ([]int, error) {
	if n < 1 {
		return nil, fmt.Errorf("entangling block needs at least one wire: %w", concept.ErrConfig)
	}
	if layers < 0 {
		return nil, fmt.Errorf("negative layer count %d: %w", layers, concept.ErrConfig)
	}
	if custom != nil {
		if len(custom) != layers {
			return nil, fmt.Errorf("%d ranges for %d layers: %w", len(custom), layers, concept.ErrConfig)
		}
		for l, r := range custom {
			if ((r%n)+n)%n == 0 {
				return nil, fmt.Errorf("range %d of layer %d is 0 mod %d wires: %w", r, l, n, concept.ErrConfig)
			}
		}
		return append([]int(nil), custom...), nil
	}
	ranges := make([]int, layers)
	if n > 1 {
		for l := range ranges {
			ranges[l] = (l % (n - 1)) + 1
		}
	}
	return ranges, nil
}

// #endregion ranges

// #region ring
// ring emits the entangler pattern of one layer over wires.
func ring(wires []int, r int, entangler Gate) []Op {
	n := len(wires)
	switch {
	case n < 2:
		return nil
	case n == 2:
		return []Op{{Gate: entangler, Wires: []int{wires[0], wires[1]}}}
	}
	ops := make([]Op, 0, n)
	for i := 0; i < n; i++ {
		j := (((i + r) % n) + n) % n
		ops = append(ops, Op{Gate: entangler, Wires: []int{wires[i], wires[j]}})
	}
	return ops
}

// entanglingBlock emits layers of rotations (from rotate) each followed by
// the entangler ring over wires.
func entanglingBlock(wires []int, layers int, entangler Gate, custom []int, rotate func(layer int) []Op) ([]Op, error) {
	if !entangler.IsEntangler() {
		return nil, fmt.Errorf("%v is not an entangling gate: %w", entangler, concept.ErrConfig)
	}
	ranges, err := Ranges(len(wires), layers, custom)
	if err != nil {
		return nil, err
	}
	var ops []Op
	for l := 0; l < layers; l++ {
		ops = append(ops, rotate(l)...)
		ops = append(ops, ring(wires, ranges[l], entangler)...)
	}
	return ops, nil
}

// EntanglingLayers emits layers of one concept rotation per wire followed
// by the entangler ring. Rotation (l, i) reads concept block row l, slot i.
func EntanglingLayers(wires []int, layers int, entangler Gate, ranges []int) ([]Op, error) {
	return entanglingBlock(wires, layers, entangler, ranges, func(l int) []Op {
		ops := make([]Op, len(wires))
		for i, w := range wires {
			ops[i] = Op{Gate: GateRot, Wires: []int{w}, Param: Param{Source: SourceConcept, Layer: l, Slot: i}}
		}
		return ops
	})
}

// #endregion ring
