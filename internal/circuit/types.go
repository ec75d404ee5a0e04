package circuit

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/qconcept/internal/concept"
)

// #region gate
// Gate is the kind of a single circuit operation.
type Gate int

const (
	// GateRot is Rot(phi, theta, omega) = RZ(omega) RY(theta) RZ(phi).
	GateRot Gate = iota + 1
	// GateRotInverse is the adjoint of GateRot with the same angles.
	GateRotInverse
	GateCNOT
	GateCZ
)

func (g Gate) String() string {
	switch g {
	case GateRot:
		return "Rot"
	case GateRotInverse:
		return "Rot†"
	case GateCNOT:
		return "CNOT"
	case GateCZ:
		return "CZ"
	default:
		return fmt.Sprintf("gate(%d)", int(g))
	}
}

// IsEntangler reports whether g is a two-qubit entangling gate.
func (g Gate) IsEntangler() bool { return g == GateCNOT || g == GateCZ }

// ParseEntangler accepts "cnot" or "cz".
func ParseEntangler(s string) (Gate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cnot", "cx":
		return GateCNOT, nil
	case "cz":
		return GateCZ, nil
	}
	return 0, fmt.Errorf("unknown entangler %q: %w", s, concept.ErrConfig)
}

// DefaultEntangler is the per-kind two-qubit gate: CZ for Product and
// DomainOnly, CNOT for General.
func DefaultEntangler(kind concept.Kind) Gate {
	if kind == concept.KindGeneral {
		return GateCNOT
	}
	return GateCZ
}

// #endregion gate

// #region param
// Source says which parameter tensor a rotation reads.
type Source int

const (
	SourceNone Source = iota
	SourceInstance
	SourceConcept
)

func (s Source) String() string {
	switch s {
	case SourceInstance:
		return "instance"
	case SourceConcept:
		return "concept"
	default:
		return "none"
	}
}

// Param locates one rotation triple. Per-item tensors (instance, product
// concept) are indexed (Slot, weight, item) and use Layer -1; shared
// concept blocks are indexed (Layer, Slot, weight).
type Param struct {
	Source Source
	Layer  int
	Slot   int
}

// Shared reports whether p reads a batch-independent block.
func (p Param) Shared() bool { return p.Source == SourceConcept && p.Layer >= 0 }

// #endregion param

// #region op
// Op is one gate application.
type Op struct {
	Gate  Gate
	Wires []int
	Param Param
}

func (o Op) String() string {
	if o.Param.Source == SourceNone {
		return fmt.Sprintf("%s%v", o.Gate, o.Wires)
	}
	if o.Param.Layer >= 0 {
		return fmt.Sprintf("%s%v <- %s[%d,%d]", o.Gate, o.Wires, o.Param.Source, o.Param.Layer, o.Param.Slot)
	}
	return fmt.Sprintf("%s%v <- %s[%d]", o.Gate, o.Wires, o.Param.Source, o.Param.Slot)
}

// #endregion op
