package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/qconcept/internal/circuit"
	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/eval"
	"github.com/danielpatrickdp/qconcept/internal/layout"
	"github.com/danielpatrickdp/qconcept/internal/model"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string             `json:"description"`
	Declaration FixtureDeclaration `json:"declaration"`
	Concept     FixtureConcept     `json:"concept"`
	Embedding   [][]float64        `json:"embedding"`
	Cases       []FixtureCase      `json:"cases"`
	EvalConfig  *FixtureEvalConfig `json:"eval_config,omitempty"`
}

// FixtureDeclaration mirrors concept.Declaration with JSON tags.
type FixtureDeclaration struct {
	InstanceDomains   []string   `json:"instance_domains"`
	Properties        [][]string `json:"properties"`
	DecoderMultiplier float64    `json:"decoder_multiplier"`
	ImagesPerInstance int        `json:"images_per_instance"`
}

// FixtureConcept selects the concept variant and circuit options.
type FixtureConcept struct {
	Type      string   `json:"type"`
	Layers    int      `json:"layers"`
	Domains   []string `json:"domains"`
	Entangler string   `json:"entangler"`
	Ranges    []int    `json:"ranges"`
}

// FixtureCase is one forward evaluation with its expected probabilities.
// Instances is (B, D, 3); Indices holds local property indices per
// concept domain and is only read for product concepts. Labels holds one
// 0/1 label per instance for the product-reduced score; items labelled 1
// also feed index recovery. Labels take precedence over Targets.
type FixtureCase struct {
	Name      string         `json:"name"`
	Instances [][][3]float64 `json:"instances"`
	Indices   [][]int        `json:"indices"`
	Expected  [][]float64    `json:"expected"`
	Targets   [][]float64    `json:"targets"`
	Labels    []float64      `json:"labels,omitempty"`
	Tolerance float64        `json:"tolerance"`
}

// FixtureEvalConfig mirrors eval.EvalConfig with JSON tags.
type FixtureEvalConfig struct {
	MinAccuracy float64 `json:"min_accuracy"`
	MaxLoss     float64 `json:"max_loss"`
	RangeSlack  float64 `json:"range_slack"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToConfig derives the concept variant the fixture describes.
func (f *Fixture) ToConfig() (*concept.Config, error) {
	kind, err := concept.ParseKind(f.Concept.Type)
	if err != nil {
		return nil, err
	}
	ctype, err := concept.NewConceptType(kind, f.Concept.Layers)
	if err != nil {
		return nil, err
	}
	decl := concept.Declaration{
		InstanceDomains:   f.Declaration.InstanceDomains,
		Properties:        f.Declaration.Properties,
		DecoderMultiplier: f.Declaration.DecoderMultiplier,
		ImagesPerInstance: f.Declaration.ImagesPerInstance,
	}
	return concept.NewConfig(decl, ctype, f.Concept.Domains...)
}

// ToModel builds the model and loads the fixture embedding. A missing
// embedding leaves the table at zero.
func (f *Fixture) ToModel(cfg *concept.Config) (*model.Model, error) {
	opts := []model.Option{model.WithInitScale(0)}
	if f.Concept.Entangler != "" {
		g, err := circuit.ParseEntangler(f.Concept.Entangler)
		if err != nil {
			return nil, err
		}
		opts = append(opts, model.WithEntangler(g))
	}
	if f.Concept.Ranges != nil {
		opts = append(opts, model.WithRanges(f.Concept.Ranges))
	}
	m, err := model.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if f.Embedding != nil {
		table, err := layout.FromRows(f.Embedding)
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		if err := m.SetEmbedding(table); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ToEvalConfig converts the fixture thresholds, falling back to defaults.
func (f *Fixture) ToEvalConfig() eval.EvalConfig {
	if f.EvalConfig == nil {
		return eval.DefaultEvalConfig()
	}
	return eval.EvalConfig{
		MinAccuracy: f.EvalConfig.MinAccuracy,
		MaxLoss:     f.EvalConfig.MaxLoss,
		RangeSlack:  f.EvalConfig.RangeSlack,
	}
}

// ToBatch converts a case's instances to a (B, D, 3) tensor.
func (c *FixtureCase) ToBatch() (*layout.Tensor, error) {
	b := len(c.Instances)
	if b == 0 {
		return nil, fmt.Errorf("case %q has no instances: %w", c.Name, concept.ErrShape)
	}
	d := len(c.Instances[0])
	out := layout.New(b, d, layout.Weights)
	for i, item := range c.Instances {
		if len(item) != d {
			return nil, fmt.Errorf("case %q item %d has %d domains, want %d: %w", c.Name, i, len(item), d, concept.ErrShape)
		}
		for j, w := range item {
			for k := 0; k < layout.Weights; k++ {
				out.Set(w[k], i, j, k)
			}
		}
	}
	return out, nil
}

// #endregion fixture-loader
