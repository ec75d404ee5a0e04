package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// ErrLayoutMismatch is returned when a checkpoint's embedding layout does
// not match the config it is loaded into.
var ErrLayoutMismatch = errors.New("checkpoint layout mismatch")

// #region layout
// Layout is the addressing contract of an embedding table: which row and
// column hold which concept parameter. Any change to domain order,
// property order, concept type, layers or concept domains changes it.
type Layout struct {
	Version         int        `json:"version"`
	InstanceDomains []string   `json:"instance_domains"`
	Properties      [][]string `json:"properties"`
	Kind            string     `json:"kind"`
	Layers          int        `json:"layers"`
	ConceptDomains  []string   `json:"concept_domains"`
	Rows            int        `json:"rows"`
	Cols            int        `json:"cols"`
}

// LayoutOf captures the embedding layout of cfg.
func LayoutOf(cfg *concept.Config) Layout {
	return Layout{
		Version:         concept.LayoutVersion,
		InstanceDomains: cfg.InstanceDomains(),
		Properties:      cfg.Properties(),
		Kind:            cfg.Kind().String(),
		Layers:          cfg.Layers(),
		ConceptDomains:  cfg.ConceptDomains(),
		Rows:            cfg.NumConcepts(),
		Cols:            cfg.EmbeddingDim(),
	}
}

// Fingerprint is a stable hash of the layout.
func (l Layout) Fingerprint() string {
	data, _ := json.Marshal(l)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Config rebuilds the concept config a layout was captured from. Tools
// use it to label the rows of a stored table without the declaration file.
func (l Layout) Config() (*concept.Config, error) {
	kind, err := concept.ParseKind(l.Kind)
	if err != nil {
		return nil, err
	}
	ctype, err := concept.NewConceptType(kind, l.Layers)
	if err != nil {
		return nil, err
	}
	decl := concept.Declaration{InstanceDomains: l.InstanceDomains, Properties: l.Properties}
	return concept.NewConfig(decl, ctype, l.ConceptDomains...)
}

// #endregion layout

// #region record
// Record is one saved embedding table.
type Record struct {
	CheckpointID string
	ParentID     string
	Layout       Layout
	Embedding    *layout.Tensor
	CreatedAt    time.Time
	MetricsJSON  string
}

// #endregion record
