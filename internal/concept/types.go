package concept

import (
	"fmt"
	"strings"
)

// #region kind
// Kind tags the three concept variants.
type Kind int

const (
	KindProduct Kind = iota + 1
	KindDomainOnly
	KindGeneral
)

func (k Kind) String() string {
	switch k {
	case KindProduct:
		return "product"
	case KindDomainOnly:
		return "domain_only"
	case KindGeneral:
		return "general"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "product", "domain_only" (or "domain-only") and "general".
func ParseKind(s string) (Kind, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "product":
		return KindProduct, nil
	case "domain_only", "domainonly":
		return KindDomainOnly, nil
	case "general":
		return KindGeneral, nil
	}
	return 0, fmt.Errorf("unknown concept type %q: %w", s, ErrConfig)
}

// #endregion kind

// #region concept-type
// ConceptType is a closed variant: Product, DomainOnly or General.
// Only the entangled variants carry a layer count.
type ConceptType interface {
	Kind() Kind
	// Layers is the number of entangling blocks; zero for Product.
	Layers() int
	isConceptType()
}

// Product compares each concept domain against one trained rotation per label.
type Product struct{}

// DomainOnly entangles the concept-domain wires with Depth layers.
type DomainOnly struct{ Depth int }

// General entangles the concept-domain wires with an appended ancilla block.
type General struct{ Depth int }

func (Product) Kind() Kind    { return KindProduct }
func (DomainOnly) Kind() Kind { return KindDomainOnly }
func (General) Kind() Kind    { return KindGeneral }

func (Product) Layers() int      { return 0 }
func (t DomainOnly) Layers() int { return t.Depth }
func (t General) Layers() int    { return t.Depth }

func (Product) isConceptType()    {}
func (DomainOnly) isConceptType() {}
func (General) isConceptType()    {}

// NewConceptType builds the variant for kind. layers is ignored for Product.
func NewConceptType(kind Kind, layers int) (ConceptType, error) {
	switch kind {
	case KindProduct:
		return Product{}, nil
	case KindDomainOnly:
		if layers < 1 {
			return nil, fmt.Errorf("domain_only needs layers >= 1, got %d: %w", layers, ErrConfig)
		}
		return DomainOnly{Depth: layers}, nil
	case KindGeneral:
		if layers < 1 {
			return nil, fmt.Errorf("general needs layers >= 1, got %d: %w", layers, ErrConfig)
		}
		return General{Depth: layers}, nil
	}
	return nil, fmt.Errorf("unknown concept kind %v: %w", kind, ErrConfig)
}

func validateType(t ConceptType) error {
	if t == nil {
		return fmt.Errorf("nil concept type: %w", ErrConfig)
	}
	_, err := NewConceptType(t.Kind(), t.Layers())
	return err
}

// #endregion concept-type
