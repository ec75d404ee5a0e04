package concept

import "fmt"

// #region layout-version
// LayoutVersion identifies the embedding-row addressing scheme below.
// Checkpoints record it together with domain and property order; changing
// either order, or this scheme, invalidates saved embedding tables.
const LayoutVersion = 1

// #endregion layout-version

// #region offsets
// Offsets returns the base row of each instance domain: offsets[i] = i*P.
func (c *Config) Offsets() []int {
	p := c.NumProperties()
	offsets := make([]int, c.NumInstanceDomains())
	for i := range offsets {
		offsets[i] = i * p
	}
	return offsets
}

// AddOffsetAt converts a local property index of instance domain dom into
// a flat embedding row.
func (c *Config) AddOffsetAt(dom, local int) (int, error) {
	if dom < 0 || dom >= c.NumInstanceDomains() {
		return 0, fmt.Errorf("domain %d outside [0,%d): %w", dom, c.NumInstanceDomains(), ErrIndex)
	}
	p := c.NumProperties()
	if local < 0 || local >= p {
		return 0, fmt.Errorf("property %d of domain %q outside [0,%d): %w",
			local, c.decl.InstanceDomains[dom], p, ErrIndex)
	}
	return dom*p + local, nil
}

// RemoveOffsetAt is the inverse of AddOffsetAt.
func (c *Config) RemoveOffsetAt(dom, flat int) (int, error) {
	if dom < 0 || dom >= c.NumInstanceDomains() {
		return 0, fmt.Errorf("domain %d outside [0,%d): %w", dom, c.NumInstanceDomains(), ErrIndex)
	}
	p := c.NumProperties()
	base := dom * p
	if flat < base || flat >= base+p {
		return 0, fmt.Errorf("row %d outside domain %q rows [%d,%d): %w",
			flat, c.decl.InstanceDomains[dom], base, base+p, ErrIndex)
	}
	return flat - base, nil
}

// AddOffset maps one row of per-concept-domain local indices to flat
// embedding rows. local[j] belongs to the j-th concept domain.
func (c *Config) AddOffset(local []int) ([]int, error) {
	if len(local) != c.NumConceptDomains() {
		return nil, fmt.Errorf("got %d indices for %d concept domains: %w",
			len(local), c.NumConceptDomains(), ErrShape)
	}
	out := make([]int, len(local))
	for j, idx := range local {
		flat, err := c.AddOffsetAt(c.conceptIndices[j], idx)
		if err != nil {
			return nil, err
		}
		out[j] = flat
	}
	return out, nil
}

// RemoveOffset is the exact inverse of AddOffset.
func (c *Config) RemoveOffset(flat []int) ([]int, error) {
	if len(flat) != c.NumConceptDomains() {
		return nil, fmt.Errorf("got %d indices for %d concept domains: %w",
			len(flat), c.NumConceptDomains(), ErrShape)
	}
	out := make([]int, len(flat))
	for j, idx := range flat {
		local, err := c.RemoveOffsetAt(c.conceptIndices[j], idx)
		if err != nil {
			return nil, err
		}
		out[j] = local
	}
	return out, nil
}

// #endregion offsets

// #region decode
// DecodeConcept maps flat rows to property labels, reading the property
// table domain-major.
func (c *Config) DecodeConcept(flat []int) ([]string, error) {
	p := c.NumProperties()
	total := c.NumInstanceDomains() * p
	labels := make([]string, len(flat))
	for i, idx := range flat {
		if idx < 0 || idx >= total {
			return nil, fmt.Errorf("row %d outside [0,%d): %w", idx, total, ErrIndex)
		}
		labels[i] = c.decl.Properties[idx/p][idx%p]
	}
	return labels, nil
}

// LookupProperty returns the local index of label within domain.
func (c *Config) LookupProperty(domain, label string) (int, error) {
	for i, name := range c.decl.InstanceDomains {
		if name != domain {
			continue
		}
		for j, l := range c.decl.Properties[i] {
			if l == label {
				return j, nil
			}
		}
		return 0, fmt.Errorf("property %q not in domain %q: %w", label, domain, ErrIndex)
	}
	return 0, fmt.Errorf("unknown domain %q: %w", domain, ErrIndex)
}

// #endregion decode
