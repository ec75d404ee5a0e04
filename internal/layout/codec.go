package layout

import (
	"fmt"

	"github.com/danielpatrickdp/qconcept/internal/concept"
)

// Weights is the rotation triple length on every parameter axis.
const Weights = 3

// #region instance
// EncodeInstances converts instance features (B, D, 3) into the circuit
// layout (D, 3, B).
func EncodeInstances(cfg *concept.Config, batch *Tensor) (*Tensor, error) {
	if batch == nil || batch.Rank() != 3 {
		return nil, fmt.Errorf("instances: want rank 3 (batch, %d, %d): %w",
			cfg.NumInstanceDomains(), Weights, concept.ErrShape)
	}
	b := batch.Dim(0)
	if err := ExpectShape("instances", batch, b, cfg.NumInstanceDomains(), Weights); err != nil {
		return nil, err
	}
	out := New(cfg.NumInstanceDomains(), Weights, b)
	for i := 0; i < b; i++ {
		for d := 0; d < cfg.NumInstanceDomains(); d++ {
			for w := 0; w < Weights; w++ {
				out.Set(batch.At(i, d, w), d, w, i)
			}
		}
	}
	return out, nil
}

// FlattenImages merges the image axis of a multi-image batch (B, K, D', 3)
// into the domain axis, giving (B, K*D', 3) with image-major domain order.
func FlattenImages(batch *Tensor) (*Tensor, error) {
	if batch == nil || batch.Rank() != 4 || batch.Dim(3) != Weights {
		var shape []int
		if batch != nil {
			shape = batch.Shape()
		}
		return nil, fmt.Errorf("multi-image batch: shape %v, want (batch, images, domains, %d): %w",
			shape, Weights, concept.ErrShape)
	}
	return batch.Reshape(batch.Dim(0), batch.Dim(1)*batch.Dim(2), Weights)
}

// #endregion instance

// #region product
// EncodeProductConcepts looks up one rotation triple per (item, concept
// domain) from the (D*P, 3) embedding table. indices holds local property
// indices, one row per batch item and one column per concept domain. The
// result is (Cd, 3, B).
func EncodeProductConcepts(cfg *concept.Config, table *Tensor, indices [][]int) (*Tensor, error) {
	if cfg.Kind() != concept.KindProduct {
		return nil, fmt.Errorf("product lookup on %v concept: %w", cfg.Kind(), concept.ErrConfig)
	}
	if err := ExpectShape("embedding table", table, cfg.NumConcepts(), cfg.EmbeddingDim()); err != nil {
		return nil, err
	}
	cd := cfg.NumConceptDomains()
	out := New(cd, Weights, len(indices))
	for i, row := range indices {
		flat, err := cfg.AddOffset(row)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		for j, r := range flat {
			for w := 0; w < Weights; w++ {
				out.Set(table.At(r, w), j, w, i)
			}
		}
	}
	return out, nil
}

// #endregion product

// #region shared
// SharedShape is the circuit layout of the single shared concept block:
// (L, Cd, 3) for DomainOnly and (2L, Cd, 3) for General.
func SharedShape(cfg *concept.Config) ([]int, error) {
	switch cfg.Kind() {
	case concept.KindDomainOnly:
		return []int{cfg.Layers(), cfg.NumConceptDomains(), Weights}, nil
	case concept.KindGeneral:
		return []int{2 * cfg.Layers(), cfg.NumConceptDomains(), Weights}, nil
	}
	return nil, fmt.Errorf("%v concept has no shared block: %w", cfg.Kind(), concept.ErrConfig)
}

// EncodeSharedConcept reshapes the flat (EmbeddingDim,) parameter vector,
// or a (1, EmbeddingDim) table, into SharedShape. The block carries no
// batch axis; the circuit reuses it for every item.
func EncodeSharedConcept(cfg *concept.Config, flat *Tensor) (*Tensor, error) {
	shape, err := SharedShape(cfg)
	if err != nil {
		return nil, err
	}
	dim := cfg.EmbeddingDim()
	if flat == nil || !(flat.HasShape(dim) || flat.HasShape(1, dim)) {
		var got []int
		if flat != nil {
			got = flat.Shape()
		}
		return nil, fmt.Errorf("shared concept: shape %v, want (%d) or (1, %d): %w", got, dim, dim, concept.ErrShape)
	}
	return flat.Reshape(shape...)
}

// DecodeSharedConcept flattens a shared block back to (1, EmbeddingDim).
func DecodeSharedConcept(cfg *concept.Config, block *Tensor) (*Tensor, error) {
	shape, err := SharedShape(cfg)
	if err != nil {
		return nil, err
	}
	if err := ExpectShape("shared concept", block, shape...); err != nil {
		return nil, err
	}
	return block.Reshape(1, cfg.EmbeddingDim())
}

// #endregion shared

// #region concept-layout
// ConceptShape is the expected circuit-side concept tensor shape for a
// batch of size b.
func ConceptShape(cfg *concept.Config, b int) ([]int, error) {
	if cfg.Kind() == concept.KindProduct {
		return []int{cfg.NumConceptDomains(), Weights, b}, nil
	}
	return SharedShape(cfg)
}

// EncodeConcepts dispatches on the concept kind. indices is ignored for the
// shared kinds; table is (NumConcepts, EmbeddingDim) in every case.
func EncodeConcepts(cfg *concept.Config, table *Tensor, indices [][]int) (*Tensor, error) {
	switch cfg.Kind() {
	case concept.KindProduct:
		return EncodeProductConcepts(cfg, table, indices)
	case concept.KindDomainOnly, concept.KindGeneral:
		return EncodeSharedConcept(cfg, table)
	}
	return nil, fmt.Errorf("unknown concept kind %v: %w", cfg.Kind(), concept.ErrConfig)
}

// #endregion concept-layout
