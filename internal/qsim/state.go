package qsim

import (
	"fmt"

	"github.com/danielpatrickdp/qconcept/internal/concept"
)

// MaxWires bounds the statevector at 2^MaxWires amplitudes.
const MaxWires = 20

// #region state
// State is an n-qubit statevector. Wire 0 is the most significant bit.
type State struct {
	wires int
	amp   []complex128
}

// NewState returns |0...0> on n wires.
func NewState(n int) (*State, error) {
	if n < 1 || n > MaxWires {
		return nil, fmt.Errorf("%d wires outside [1,%d]: %w", n, MaxWires, concept.ErrConfig)
	}
	s := &State{wires: n, amp: make([]complex128, 1<<n)}
	s.amp[0] = 1
	return s, nil
}

func (s *State) reset() {
	for i := range s.amp {
		s.amp[i] = 0
	}
	s.amp[0] = 1
}

func (s *State) mask(wire int) int { return 1 << (s.wires - 1 - wire) }

// apply1 applies a single-qubit gate to wire.
func (s *State) apply1(u mat2, wire int) {
	m := s.mask(wire)
	for i := range s.amp {
		if i&m != 0 {
			continue
		}
		a0, a1 := s.amp[i], s.amp[i|m]
		s.amp[i] = u[0][0]*a0 + u[0][1]*a1
		s.amp[i|m] = u[1][0]*a0 + u[1][1]*a1
	}
}

func (s *State) cnot(control, target int) {
	cm, tm := s.mask(control), s.mask(target)
	for i := range s.amp {
		if i&cm != 0 && i&tm == 0 {
			s.amp[i], s.amp[i|tm] = s.amp[i|tm], s.amp[i]
		}
	}
}

func (s *State) cz(a, b int) {
	am, bm := s.mask(a), s.mask(b)
	for i := range s.amp {
		if i&am != 0 && i&bm != 0 {
			s.amp[i] = -s.amp[i]
		}
	}
}

// ExpvalZ is <Z> on wire, in [-1, 1].
func (s *State) ExpvalZ(wire int) float64 {
	m := s.mask(wire)
	var e float64
	for i, a := range s.amp {
		p := real(a)*real(a) + imag(a)*imag(a)
		if i&m == 0 {
			e += p
		} else {
			e -= p
		}
	}
	return e
}

// Norm is the squared norm, 1 up to rounding.
func (s *State) Norm() float64 {
	var n float64
	for _, a := range s.amp {
		n += real(a)*real(a) + imag(a)*imag(a)
	}
	return n
}

// #endregion state
