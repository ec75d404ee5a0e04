package concept

import (
	"fmt"
	"strings"
)

// #region declaration
// Declaration is the dataset-level description a Config is derived from:
// ordered instance domains and, per domain, its ordered property labels.
// Domain i occupies wire i.
type Declaration struct {
	InstanceDomains   []string
	Properties        [][]string
	DecoderMultiplier float64
	ImagesPerInstance int
}

// Validate checks domain names and that the property table is rectangular
// with at least two labels per domain.
func (d Declaration) Validate() error {
	if len(d.InstanceDomains) == 0 {
		return fmt.Errorf("no instance domains: %w", ErrConfig)
	}
	seen := make(map[string]struct{}, len(d.InstanceDomains))
	for _, name := range d.InstanceDomains {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty instance domain name: %w", ErrConfig)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate instance domain %q: %w", name, ErrConfig)
		}
		seen[name] = struct{}{}
	}
	if len(d.Properties) != len(d.InstanceDomains) {
		return fmt.Errorf("properties declared for %d domains, want %d: %w",
			len(d.Properties), len(d.InstanceDomains), ErrConfig)
	}
	p := len(d.Properties[0])
	if p < 2 {
		return fmt.Errorf("domain %q has %d properties, want at least 2: %w", d.InstanceDomains[0], p, ErrConfig)
	}
	for i, labels := range d.Properties {
		if len(labels) != p {
			return fmt.Errorf("ragged properties: domain %q has %d labels, domain %q has %d: %w",
				d.InstanceDomains[i], len(labels), d.InstanceDomains[0], p, ErrConfig)
		}
	}
	if d.ImagesPerInstance < 0 {
		return fmt.Errorf("images per instance %d is negative: %w", d.ImagesPerInstance, ErrConfig)
	}
	return nil
}

func (d Declaration) clone() Declaration {
	out := Declaration{
		InstanceDomains:   append([]string(nil), d.InstanceDomains...),
		Properties:        make([][]string, len(d.Properties)),
		DecoderMultiplier: d.DecoderMultiplier,
		ImagesPerInstance: d.ImagesPerInstance,
	}
	for i, labels := range d.Properties {
		out.Properties[i] = append([]string(nil), labels...)
	}
	if out.ImagesPerInstance == 0 {
		out.ImagesPerInstance = 1
	}
	return out
}

// #endregion declaration

// #region config
// Config is one concept variant over a Declaration. It is immutable; use
// WithType or WithConceptDomains to derive another variant from the same
// declaration. Every derived constant is computed from the current fields
// on each call.
type Config struct {
	decl           Declaration
	ctype          ConceptType
	conceptDomains []string
	conceptIndices []int
}

// NewConfig validates decl and derives a variant of type ctype over
// conceptDomains. With no conceptDomains the concept spans every instance
// domain.
func NewConfig(decl Declaration, ctype ConceptType, conceptDomains ...string) (*Config, error) {
	if err := decl.Validate(); err != nil {
		return nil, err
	}
	if err := validateType(ctype); err != nil {
		return nil, err
	}
	c := &Config{decl: decl.clone(), ctype: ctype}
	if err := c.setConceptDomains(conceptDomains); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setConceptDomains(names []string) error {
	if len(names) == 0 {
		names = c.decl.InstanceDomains
	}
	pos := make(map[string]int, len(c.decl.InstanceDomains))
	for i, name := range c.decl.InstanceDomains {
		pos[name] = i
	}
	indices := make([]int, 0, len(names))
	used := make(map[string]struct{}, len(names))
	for _, name := range names {
		i, ok := pos[name]
		if !ok {
			return fmt.Errorf("concept domain %q not among instance domains %v: %w",
				name, c.decl.InstanceDomains, ErrConfig)
		}
		if _, dup := used[name]; dup {
			return fmt.Errorf("duplicate concept domain %q: %w", name, ErrConfig)
		}
		used[name] = struct{}{}
		indices = append(indices, i)
	}
	c.conceptDomains = append([]string(nil), names...)
	c.conceptIndices = indices
	return nil
}

// WithType derives a new variant with a different concept type over the
// same declaration and concept domains.
func (c *Config) WithType(ctype ConceptType) (*Config, error) {
	return NewConfig(c.decl, ctype, c.conceptDomains...)
}

// WithConceptDomains derives a new variant restricted to names.
func (c *Config) WithConceptDomains(names ...string) (*Config, error) {
	return NewConfig(c.decl, c.ctype, names...)
}

// #endregion config

// #region accessors
func (c *Config) Declaration() Declaration { return c.decl.clone() }
func (c *Config) Type() ConceptType        { return c.ctype }
func (c *Config) Kind() Kind               { return c.ctype.Kind() }
func (c *Config) Layers() int              { return c.ctype.Layers() }

func (c *Config) InstanceDomains() []string {
	return append([]string(nil), c.decl.InstanceDomains...)
}

func (c *Config) ConceptDomains() []string {
	return append([]string(nil), c.conceptDomains...)
}

// ConceptDomainIndices returns the position of each concept domain within
// the instance domains, in concept-domain order.
func (c *Config) ConceptDomainIndices() []int {
	return append([]int(nil), c.conceptIndices...)
}

// Properties returns a copy of the property table, domain-major.
func (c *Config) Properties() [][]string { return c.decl.clone().Properties }

func (c *Config) DecoderMultiplier() float64 { return c.decl.DecoderMultiplier }
func (c *Config) ImagesPerInstance() int     { return c.decl.ImagesPerInstance }

// #endregion accessors

// #region derived
func (c *Config) NumInstanceDomains() int { return len(c.decl.InstanceDomains) }
func (c *Config) NumConceptDomains() int  { return len(c.conceptDomains) }
func (c *Config) NumProperties() int      { return len(c.decl.Properties[0]) }

// NumConcepts is the embedding table row count: one row per (domain,
// property) pair for Product, a single shared row otherwise.
func (c *Config) NumConcepts() int {
	if c.Kind() == KindProduct {
		return c.NumInstanceDomains() * c.NumProperties()
	}
	return 1
}

// NumWires is D for Product and DomainOnly, D + Cd for General.
func (c *Config) NumWires() int {
	if c.Kind() == KindGeneral {
		return c.NumInstanceDomains() + c.NumConceptDomains()
	}
	return c.NumInstanceDomains()
}

// EmbeddingDim is the width of one embedding table row.
func (c *Config) EmbeddingDim() int {
	switch c.Kind() {
	case KindGeneral:
		return c.NumConceptDomains() * 2 * 3 * c.Layers()
	case KindDomainOnly:
		return c.NumConceptDomains() * 3 * c.Layers()
	default:
		return 3
	}
}

// InstanceWires are 0..D-1.
func (c *Config) InstanceWires() []int {
	wires := make([]int, c.NumInstanceDomains())
	for i := range wires {
		wires[i] = i
	}
	return wires
}

// ConceptWires are the instance wires of the concept domains.
func (c *Config) ConceptWires() []int { return c.ConceptDomainIndices() }

// AncillaWires are D..D+Cd-1 for General and nil otherwise.
func (c *Config) AncillaWires() []int {
	if c.Kind() != KindGeneral {
		return nil
	}
	d := c.NumInstanceDomains()
	wires := make([]int, c.NumConceptDomains())
	for i := range wires {
		wires[i] = d + i
	}
	return wires
}

// #endregion derived
