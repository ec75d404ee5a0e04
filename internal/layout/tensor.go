package layout

import (
	"fmt"

	"github.com/danielpatrickdp/qconcept/internal/concept"
)

// #region tensor
// Tensor is a dense row-major float64 array with a fixed shape.
type Tensor struct {
	shape   []int
	strides []int
	data    []float64
}

// New allocates a zero tensor of the given shape.
func New(shape ...int) *Tensor {
	n := 1
	for _, s := range shape {
		if s < 0 {
			panic(fmt.Sprintf("layout: negative dimension in shape %v", shape))
		}
		n *= s
	}
	t := &Tensor{shape: append([]int(nil), shape...), data: make([]float64, n)}
	t.strides = stridesFor(t.shape)
	return t
}

// FromData wraps data (copied) in a tensor of the given shape.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	n := 1
	for _, s := range shape {
		if s < 0 {
			return nil, fmt.Errorf("negative dimension in shape %v: %w", shape, concept.ErrShape)
		}
		n *= s
	}
	if n != len(data) {
		return nil, fmt.Errorf("%d values do not fill shape %v: %w", len(data), shape, concept.ErrShape)
	}
	t := &Tensor{shape: append([]int(nil), shape...), data: append([]float64(nil), data...)}
	t.strides = stridesFor(t.shape)
	return t, nil
}

// FromRows builds a rank-2 tensor from a rectangular table.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", i, len(r), cols, concept.ErrShape)
		}
		data = append(data, r...)
	}
	return FromData(data, len(rows), cols)
}

func stridesFor(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func (t *Tensor) Shape() []int    { return append([]int(nil), t.shape...) }
func (t *Tensor) Rank() int       { return len(t.shape) }
func (t *Tensor) Dim(i int) int   { return t.shape[i] }
func (t *Tensor) Len() int        { return len(t.data) }
func (t *Tensor) Data() []float64 { return append([]float64(nil), t.data...) }

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("layout: %d indices for rank %d tensor", len(idx), len(t.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("layout: index %v out of range for shape %v", idx, t.shape))
		}
		off += x * t.strides[i]
	}
	return off
}

// At reads one element. It panics on a bad index, like slice indexing.
func (t *Tensor) At(idx ...int) float64 { return t.data[t.offset(idx)] }

// Set writes one element.
func (t *Tensor) Set(v float64, idx ...int) { t.data[t.offset(idx)] = v }

// Add accumulates into one element.
func (t *Tensor) Add(v float64, idx ...int) { t.data[t.offset(idx)] += v }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c, _ := FromData(t.data, t.shape...)
	return c
}

// Reshape returns a copy with a new shape holding the same element count.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	return FromData(t.data, shape...)
}

// Row returns a copy of the index-th slice along the first axis.
func (t *Tensor) Row(index int) []float64 {
	if len(t.shape) == 0 || index < 0 || index >= t.shape[0] {
		panic(fmt.Sprintf("layout: row %d out of range for shape %v", index, t.shape))
	}
	start := index * t.strides[0]
	return append([]float64(nil), t.data[start:start+t.strides[0]]...)
}

// HasShape reports whether t has exactly shape.
func (t *Tensor) HasShape(shape ...int) bool {
	if t == nil || len(shape) != len(t.shape) {
		return false
	}
	for i := range shape {
		if shape[i] != t.shape[i] {
			return false
		}
	}
	return true
}

// ExpectShape returns a wrapped concept.ErrShape when t does not have shape.
func ExpectShape(name string, t *Tensor, shape ...int) error {
	if t == nil {
		return fmt.Errorf("%s: missing tensor, want shape %v: %w", name, shape, concept.ErrShape)
	}
	if !t.HasShape(shape...) {
		return fmt.Errorf("%s: shape %v, want %v: %w", name, t.shape, shape, concept.ErrShape)
	}
	return nil
}

// #endregion tensor
