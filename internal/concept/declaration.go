package concept

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region yaml-types
type yamlDeclaration struct {
	InstanceDomains   []string            `yaml:"instance_domains"`
	Properties        map[string][]string `yaml:"properties"`
	DecoderMultiplier float64             `yaml:"decoder_multiplier"`
	ImagesPerInstance int                 `yaml:"images_per_instance"`
	Concept           yamlConcept         `yaml:"concept"`
}

type yamlConcept struct {
	Type      string   `yaml:"type"`
	Layers    int      `yaml:"layers"`
	Domains   []string `yaml:"domains"`
	Entangler string   `yaml:"entangler"`
}

// #endregion yaml-types

// #region file
// File is a parsed declaration document: the dataset declaration plus the
// default concept variant to derive from it.
type File struct {
	Declaration    Declaration
	ConceptType    ConceptType
	ConceptDomains []string
	// Entangler names the two-qubit gate override, empty for the per-type default.
	Entangler string
}

// Config derives the variant the file describes.
func (f *File) Config() (*Config, error) {
	return NewConfig(f.Declaration, f.ConceptType, f.ConceptDomains...)
}

// LoadDeclaration reads and parses a YAML declaration file.
func LoadDeclaration(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declaration %s: %w", path, err)
	}
	f, err := ParseDeclaration(data)
	if err != nil {
		return nil, fmt.Errorf("parse declaration %s: %w", path, err)
	}
	return f, nil
}

// ParseDeclaration decodes a YAML declaration. Properties are keyed by
// domain name and ordered by instance_domains.
func ParseDeclaration(data []byte) (*File, error) {
	var raw yamlDeclaration
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %v: %w", err, ErrConfig)
	}

	decl := Declaration{
		InstanceDomains:   raw.InstanceDomains,
		Properties:        make([][]string, 0, len(raw.InstanceDomains)),
		DecoderMultiplier: raw.DecoderMultiplier,
		ImagesPerInstance: raw.ImagesPerInstance,
	}
	for _, name := range raw.InstanceDomains {
		labels, ok := raw.Properties[name]
		if !ok {
			return nil, fmt.Errorf("no properties for domain %q: %w", name, ErrConfig)
		}
		decl.Properties = append(decl.Properties, labels)
	}
	if len(raw.Properties) != len(raw.InstanceDomains) {
		return nil, fmt.Errorf("properties declare %d domains, instance_domains has %d: %w",
			len(raw.Properties), len(raw.InstanceDomains), ErrConfig)
	}
	if err := decl.Validate(); err != nil {
		return nil, err
	}

	typeName := raw.Concept.Type
	if typeName == "" {
		typeName = KindProduct.String()
	}
	kind, err := ParseKind(typeName)
	if err != nil {
		return nil, err
	}
	layers := raw.Concept.Layers
	if layers == 0 && kind != KindProduct {
		layers = 1
	}
	ctype, err := NewConceptType(kind, layers)
	if err != nil {
		return nil, err
	}

	return &File{
		Declaration:    decl,
		ConceptType:    ctype,
		ConceptDomains: raw.Concept.Domains,
		Entangler:      raw.Concept.Entangler,
	}, nil
}

// #endregion file
