package concept

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers
func colorShape() Declaration {
	return Declaration{
		InstanceDomains: []string{"color", "shape"},
		Properties: [][]string{
			{"red", "blue", "green"},
			{"circle", "square", "triangle"},
		},
	}
}

func syntheticDecl(d, p int) Declaration {
	decl := Declaration{}
	for i := 0; i < d; i++ {
		decl.InstanceDomains = append(decl.InstanceDomains, fmt.Sprintf("dom%d", i))
		labels := make([]string, p)
		for j := range labels {
			labels[j] = fmt.Sprintf("d%d-p%d", i, j)
		}
		decl.Properties = append(decl.Properties, labels)
	}
	return decl
}

// #endregion helpers

// #region derived-tests
func TestDerivedConstantsPerKind(t *testing.T) {
	for _, d := range []int{1, 2, 3, 5} {
		for _, p := range []int{2, 3, 7} {
			decl := syntheticDecl(d, p)

			prod, err := NewConfig(decl, Product{})
			require.NoError(t, err)
			assert.Equal(t, d*p, prod.NumConcepts())
			assert.Equal(t, d, prod.NumWires())
			assert.Equal(t, 3, prod.EmbeddingDim())

			dom, err := NewConfig(decl, DomainOnly{Depth: 2})
			require.NoError(t, err)
			assert.Equal(t, 1, dom.NumConcepts())
			assert.Equal(t, d, dom.NumWires())
			assert.Equal(t, d*3*2, dom.EmbeddingDim())

			gen, err := NewConfig(decl, General{Depth: 3})
			require.NoError(t, err)
			assert.Equal(t, 1, gen.NumConcepts())
			assert.Equal(t, d+gen.NumConceptDomains(), gen.NumWires())
			assert.Equal(t, d*2*3*3, gen.EmbeddingDim())
		}
	}
}

func TestDomainOnlyEmbeddingDim(t *testing.T) {
	cfg, err := NewConfig(syntheticDecl(3, 3), DomainOnly{Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, 18, cfg.EmbeddingDim())
}

func TestGeneralTwoDomains(t *testing.T) {
	cfg, err := NewConfig(colorShape(), General{Depth: 1})
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.EmbeddingDim())
	assert.Equal(t, 4, cfg.NumWires())
	assert.Equal(t, []int{2, 3}, cfg.AncillaWires())
	assert.Equal(t, []int{0, 1}, cfg.ConceptWires())
}

func TestConceptDomainSubset(t *testing.T) {
	decl := syntheticDecl(3, 2)
	cfg, err := NewConfig(decl, General{Depth: 1}, "dom2", "dom0")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, cfg.ConceptDomainIndices())
	assert.Equal(t, 2, cfg.NumConceptDomains())
	assert.Equal(t, 5, cfg.NumWires())
	assert.Equal(t, []int{3, 4}, cfg.AncillaWires())
}

func TestWithTypeDerivesFreshVariant(t *testing.T) {
	base, err := NewConfig(colorShape(), Product{})
	require.NoError(t, err)

	gen, err := base.WithType(General{Depth: 2})
	require.NoError(t, err)

	// base is untouched
	assert.Equal(t, KindProduct, base.Kind())
	assert.Equal(t, 2, base.NumWires())
	assert.Equal(t, 6, base.NumConcepts())

	assert.Equal(t, KindGeneral, gen.Kind())
	assert.Equal(t, 4, gen.NumWires())
	assert.Equal(t, 2*2*3*2, gen.EmbeddingDim())

	sub, err := gen.WithConceptDomains("shape")
	require.NoError(t, err)
	assert.Equal(t, 3, sub.NumWires())
	assert.Equal(t, []int{1}, sub.ConceptWires())
}

// #endregion derived-tests

// #region error-tests
func TestConfigErrors(t *testing.T) {
	cases := map[string]func() error{
		"ragged": func() error {
			decl := colorShape()
			decl.Properties[1] = []string{"circle", "square"}
			_, err := NewConfig(decl, Product{})
			return err
		},
		"single property": func() error {
			_, err := NewConfig(syntheticDecl(2, 1), Product{})
			return err
		},
		"no domains": func() error {
			_, err := NewConfig(Declaration{}, Product{})
			return err
		},
		"duplicate domain": func() error {
			decl := colorShape()
			decl.InstanceDomains[1] = "color"
			_, err := NewConfig(decl, Product{})
			return err
		},
		"missing concept domain": func() error {
			_, err := NewConfig(colorShape(), Product{}, "size")
			return err
		},
		"zero layers": func() error {
			_, err := NewConfig(colorShape(), DomainOnly{})
			return err
		},
		"nil type": func() error {
			_, err := NewConfig(colorShape(), nil)
			return err
		},
		"unknown kind": func() error {
			_, err := ParseKind("tensor")
			return err
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fn(), ErrConfig)
		})
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"product":     KindProduct,
		"DOMAIN_ONLY": KindDomainOnly,
		"domain-only": KindDomainOnly,
		" general ":   KindGeneral,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

// #endregion error-tests
