package qsim

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/qconcept/internal/circuit"
	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// #region device
// Device simulates circuits of up to Wires qubits exactly. It holds no
// per-call state and is safe for concurrent use.
type Device struct {
	Wires int
}

// NewDevice returns a device with n wires.
func NewDevice(n int) (*Device, error) {
	if n < 1 || n > MaxWires {
		return nil, fmt.Errorf("%d wires outside [1,%d]: %w", n, MaxWires, concept.ErrConfig)
	}
	return &Device{Wires: n}, nil
}

// shift perturbs one angle of one op during a run.
type shift struct {
	op    int
	k     int
	delta float64
}

func (d *Device) check(c *circuit.Circuit, instance, conceptParams *layout.Tensor) (int, error) {
	if c.NumWires > d.Wires {
		return 0, fmt.Errorf("circuit needs %d wires, device has %d: %w", c.NumWires, d.Wires, concept.ErrShape)
	}
	return c.CheckParams(instance, conceptParams)
}

func angles(op circuit.Op, instance, conceptParams *layout.Tensor, b int) [3]float64 {
	var a [3]float64
	for k := 0; k < 3; k++ {
		switch {
		case op.Param.Source == circuit.SourceInstance:
			a[k] = instance.At(op.Param.Slot, k, b)
		case op.Param.Shared():
			a[k] = conceptParams.At(op.Param.Layer, op.Param.Slot, k)
		default:
			a[k] = conceptParams.At(op.Param.Slot, k, b)
		}
	}
	return a
}

// run simulates batch item b into st and returns the measured expectations.
func (d *Device) run(st *State, c *circuit.Circuit, instance, conceptParams *layout.Tensor, b int, sh *shift) []float64 {
	st.reset()
	for i, op := range c.Ops {
		switch op.Gate {
		case circuit.GateRot, circuit.GateRotInverse:
			a := angles(op, instance, conceptParams, b)
			if sh != nil && sh.op == i {
				a[sh.k] += sh.delta
			}
			u := rot(a[0], a[1], a[2])
			if op.Gate == circuit.GateRotInverse {
				u = u.adjoint()
			}
			st.apply1(u, op.Wires[0])
		case circuit.GateCNOT:
			st.cnot(op.Wires[0], op.Wires[1])
		case circuit.GateCZ:
			st.cz(op.Wires[0], op.Wires[1])
		}
	}
	out := make([]float64, len(c.Measured))
	for m, w := range c.Measured {
		out[m] = st.ExpvalZ(w)
	}
	return out
}

// Execute evaluates the circuit for every batch item and returns the Z
// expectations of the measured wires, shaped (B, len(c.Measured)).
// Shapes are validated before any gate is simulated.
func (d *Device) Execute(c *circuit.Circuit, instance, conceptParams *layout.Tensor) (*layout.Tensor, error) {
	b, err := d.check(c, instance, conceptParams)
	if err != nil {
		return nil, err
	}
	st, err := NewState(c.NumWires)
	if err != nil {
		return nil, err
	}
	out := layout.New(b, len(c.Measured))
	for i := 0; i < b; i++ {
		for m, e := range d.run(st, c, instance, conceptParams, i, nil) {
			out.Set(e, i, m)
		}
	}
	return out, nil
}

// #endregion device

// #region gradient
// ConceptGradient returns the gradient of sum(upstream * Execute(...)) with
// respect to every concept parameter, shaped like conceptParams. upstream
// is (B, len(c.Measured)). Gradients are exact, by the parameter-shift rule.
func (d *Device) ConceptGradient(c *circuit.Circuit, instance, conceptParams, upstream *layout.Tensor) (*layout.Tensor, error) {
	return d.gradient(c, instance, conceptParams, upstream, circuit.SourceConcept)
}

// InstanceGradient is ConceptGradient for the instance parameters.
func (d *Device) InstanceGradient(c *circuit.Circuit, instance, conceptParams, upstream *layout.Tensor) (*layout.Tensor, error) {
	return d.gradient(c, instance, conceptParams, upstream, circuit.SourceInstance)
}

func (d *Device) gradient(c *circuit.Circuit, instance, conceptParams, upstream *layout.Tensor, source circuit.Source) (*layout.Tensor, error) {
	b, err := d.check(c, instance, conceptParams)
	if err != nil {
		return nil, err
	}
	if err := layout.ExpectShape("upstream", upstream, b, len(c.Measured)); err != nil {
		return nil, err
	}
	st, err := NewState(c.NumWires)
	if err != nil {
		return nil, err
	}

	var grad *layout.Tensor
	if source == circuit.SourceInstance {
		grad = layout.New(instance.Shape()...)
	} else {
		grad = layout.New(conceptParams.Shape()...)
	}

	for i, op := range c.Ops {
		if op.Param.Source != source {
			continue
		}
		for k := 0; k < 3; k++ {
			for item := 0; item < b; item++ {
				plus := d.run(st, c, instance, conceptParams, item, &shift{op: i, k: k, delta: math.Pi / 2})
				minus := d.run(st, c, instance, conceptParams, item, &shift{op: i, k: k, delta: -math.Pi / 2})
				var g float64
				for m := range plus {
					g += upstream.At(item, m) * (plus[m] - minus[m]) / 2
				}
				if op.Param.Shared() {
					grad.Add(g, op.Param.Layer, op.Param.Slot, k)
				} else {
					grad.Add(g, op.Param.Slot, k, item)
				}
			}
		}
	}
	return grad, nil
}

// #endregion gradient
