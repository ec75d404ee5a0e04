package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetsAreDomainTimesProperties(t *testing.T) {
	cfg, err := NewConfig(syntheticDecl(4, 3), Product{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6, 9}, cfg.Offsets())
}

func TestOffsetRoundTrip(t *testing.T) {
	for _, d := range []int{1, 2, 3, 5} {
		for _, p := range []int{2, 4} {
			cfg, err := NewConfig(syntheticDecl(d, p), Product{})
			require.NoError(t, err)
			for dom := 0; dom < d; dom++ {
				for x := 0; x < p; x++ {
					flat, err := cfg.AddOffsetAt(dom, x)
					require.NoError(t, err)
					back, err := cfg.RemoveOffsetAt(dom, flat)
					require.NoError(t, err)
					assert.Equal(t, x, back)

					labels, err := cfg.DecodeConcept([]int{flat})
					require.NoError(t, err)
					assert.Equal(t, cfg.Properties()[dom][x], labels[0])
				}
			}
		}
	}
}

func TestAddOffsetUsesConceptDomainPositions(t *testing.T) {
	cfg, err := NewConfig(syntheticDecl(3, 2), Product{}, "dom2", "dom0")
	require.NoError(t, err)

	flat, err := cfg.AddOffset([]int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 1}, flat)

	local, err := cfg.RemoveOffset(flat)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, local)

	labels, err := cfg.DecodeConcept(flat)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2-p1", "d0-p1"}, labels)
}

func TestOffsetOutOfRange(t *testing.T) {
	cfg, err := NewConfig(colorShape(), Product{})
	require.NoError(t, err)

	_, err = cfg.AddOffset([]int{3, 0})
	assert.ErrorIs(t, err, ErrIndex)
	_, err = cfg.AddOffset([]int{0, -1})
	assert.ErrorIs(t, err, ErrIndex)
	_, err = cfg.RemoveOffset([]int{0, 2})
	assert.ErrorIs(t, err, ErrIndex)
	_, err = cfg.DecodeConcept([]int{6})
	assert.ErrorIs(t, err, ErrIndex)
	_, err = cfg.AddOffset([]int{0})
	assert.ErrorIs(t, err, ErrShape)
}

func TestLookupProperty(t *testing.T) {
	cfg, err := NewConfig(colorShape(), Product{})
	require.NoError(t, err)

	idx, err := cfg.LookupProperty("shape", "triangle")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = cfg.LookupProperty("shape", "hexagon")
	assert.ErrorIs(t, err, ErrIndex)
}
