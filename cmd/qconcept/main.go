package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/qconcept/internal/checkpoint"
	"github.com/danielpatrickdp/qconcept/internal/circuit"
	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/eval"
	"github.com/danielpatrickdp/qconcept/internal/gate"
	"github.com/danielpatrickdp/qconcept/internal/layout"
	"github.com/danielpatrickdp/qconcept/internal/logging"
	"github.com/danielpatrickdp/qconcept/internal/model"
	"github.com/danielpatrickdp/qconcept/internal/replay"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("QCONCEPT_CONFIG", "configs/puzzle.yaml"), "path to the domain declaration YAML")
	dbPath := flag.String("db", envOr("QCONCEPT_DB", "qconcept.db"), "path to the checkpoint database")
	logMode := flag.String("log", envOr("QCONCEPT_LOG", "dev"), "log mode: dev or prod")
	typeName := flag.String("type", "", "override concept type (product, domain_only, general)")
	layers := flag.Int("layers", 0, "override entangling layers")
	domains := flag.String("concept-domains", "", "override concept domains, comma separated")
	entangler := flag.String("entangler", "", "override entangling gate (cnot, cz)")
	seed := flag.Int64("seed", envInt64("QCONCEPT_SEED", 1), "embedding initialisation seed")
	showOps := flag.Bool("ops", false, "print the gate list")
	importPath := flag.String("import", "", "JSON embedding table to promote to a new checkpoint")
	fixturePath := flag.String("fixture", "", "replay fixture used to evaluate an imported table")
	maxDelta := flag.Float64("max-delta", 0, "reject imports further than this L2 distance from the active table (0 = no cap)")
	flag.Parse()

	logger, err := logging.New(*logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	file, err := concept.LoadDeclaration(*configPath)
	if err != nil {
		logger.Fatal("load declaration", "path", *configPath, "error", err)
	}
	if *entangler != "" {
		file.Entangler = *entangler
	}
	cfg, err := deriveConfig(file, *typeName, *layers, *domains)
	if err != nil {
		logger.Fatal("derive concept config", "error", err)
	}

	opts := []model.Option{model.WithSeed(*seed)}
	if file.Entangler != "" {
		g, err := circuit.ParseEntangler(file.Entangler)
		if err != nil {
			logger.Fatal("parse entangler", "error", err)
		}
		opts = append(opts, model.WithEntangler(g))
	}
	m, err := model.New(cfg, opts...)
	if err != nil {
		logger.Fatal("build model", "error", err)
	}
	c := m.Circuit()

	logger.Info("concept config",
		"type", cfg.Kind().String(),
		"layers", cfg.Layers(),
		"instance_domains", cfg.InstanceDomains(),
		"concept_domains", cfg.ConceptDomains(),
		"num_concepts", cfg.NumConcepts(),
		"num_wires", cfg.NumWires(),
		"embedding_dim", cfg.EmbeddingDim(),
	)
	logger.Info("circuit",
		"ops", len(c.Ops),
		"entangler", c.Entangler.String(),
		"entangling_layers", c.EntanglingLayers(),
		"ranges", c.Ranges(),
		"measured", c.Measured,
	)
	if *showOps {
		for i, op := range c.Ops {
			fmt.Printf("%4d  %s\n", i, op)
		}
	}

	store, err := checkpoint.NewStore(*dbPath)
	if err != nil {
		logger.Fatal("open checkpoint store", "path", *dbPath, "error", err)
	}
	defer store.Close()

	rec, err := ensureCheckpoint(store, m, logger)
	if err != nil {
		logger.Fatal("checkpoint", "error", err)
	}
	if *importPath != "" {
		gcfg := gate.DefaultGateConfig()
		gcfg.MaxDeltaNorm = *maxDelta
		if rec, err = importTable(store, m, rec, *importPath, *fixturePath, gate.NewGate(gcfg), logger); err != nil {
			logger.Fatal("import", "path", *importPath, "error", err)
		}
	}
	logger.Info("ready", "checkpoint", rec.CheckpointID, "db", *dbPath)
}

// #endregion main

// #region derive
// deriveConfig applies command-line overrides on top of the declared
// variant. Overrides derive new configs; the declared one is not touched.
func deriveConfig(file *concept.File, typeName string, layers int, domains string) (*concept.Config, error) {
	cfg, err := file.Config()
	if err != nil {
		return nil, err
	}
	if typeName != "" || layers > 0 {
		kind := cfg.Kind()
		if typeName != "" {
			if kind, err = concept.ParseKind(typeName); err != nil {
				return nil, err
			}
		}
		l := layers
		if l == 0 {
			l = cfg.Layers()
			if l == 0 {
				l = 1
			}
		}
		ctype, err := concept.NewConceptType(kind, l)
		if err != nil {
			return nil, err
		}
		if cfg, err = cfg.WithType(ctype); err != nil {
			return nil, err
		}
	}
	if domains != "" {
		names := strings.Split(domains, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		if cfg, err = cfg.WithConceptDomains(names...); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// #endregion derive

// #region checkpoint
// ensureCheckpoint reuses the active checkpoint when its layout fits the
// model and saves the model's fresh table otherwise.
func ensureCheckpoint(store *checkpoint.Store, m *model.Model, logger *logging.Logger) (checkpoint.Record, error) {
	current, err := store.GetCurrent()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		logger.Info("no active checkpoint found, creating initial checkpoint")
		return store.Save(m.Config(), "", m.Embedding(), "")
	case err != nil:
		return checkpoint.Record{}, err
	}

	table, err := store.Load(current.CheckpointID, m.Config())
	if errors.Is(err, checkpoint.ErrLayoutMismatch) {
		logger.Warn("active checkpoint layout differs, starting a new lineage",
			"active", current.CheckpointID, "active_kind", current.Layout.Kind)
		return store.Save(m.Config(), "", m.Embedding(), "")
	}
	if err != nil {
		return checkpoint.Record{}, err
	}
	if err := m.SetEmbedding(table); err != nil {
		return checkpoint.Record{}, err
	}
	return current, nil
}

// importTable gates an externally trained table against the active one and
// commits it as a child checkpoint when the gate accepts it. The active
// record is returned unchanged on rejection.
func importTable(store *checkpoint.Store, m *model.Model, active checkpoint.Record, path, fixturePath string, g *gate.Gate, logger *logging.Logger) (checkpoint.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return active, fmt.Errorf("read table: %w", err)
	}
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return active, fmt.Errorf("parse table: %w", err)
	}
	proposed, err := layout.FromRows(rows)
	if err != nil {
		return active, err
	}
	if err := layout.ExpectShape("imported table", proposed, m.Config().NumConcepts(), m.Config().EmbeddingDim()); err != nil {
		return active, err
	}

	old := m.Embedding()
	var oldEval, newEval *eval.EvalResult
	if fixturePath != "" {
		if oldEval, newEval, err = evaluatePair(m, old, proposed, fixturePath); err != nil {
			return active, err
		}
	}

	decision := g.Evaluate(old, proposed, oldEval, newEval)
	logger.Info("gate decision",
		"action", decision.Action,
		"reason", decision.Reason,
		"delta_norm", decision.DeltaNorm,
		"soft_score", decision.SoftScore,
	)
	if decision.Action != "commit" {
		return active, nil
	}

	metricsJSON, err := json.Marshal(decision)
	if err != nil {
		return active, fmt.Errorf("marshal decision: %w", err)
	}
	rec, err := store.Save(m.Config(), active.CheckpointID, proposed, string(metricsJSON))
	if err != nil {
		return active, err
	}
	if err := m.SetEmbedding(proposed); err != nil {
		return rec, err
	}
	logger.Info("checkpoint committed", "checkpoint", rec.CheckpointID, "parent", active.CheckpointID)
	return rec, nil
}

// evaluatePair replays the fixture cases with the active and the proposed
// tables. The fixture must describe the same layout as the model.
func evaluatePair(m *model.Model, old, proposed *layout.Tensor, fixturePath string) (*eval.EvalResult, *eval.EvalResult, error) {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return nil, nil, err
	}
	fcfg, err := f.ToConfig()
	if err != nil {
		return nil, nil, err
	}
	if checkpoint.LayoutOf(fcfg).Fingerprint() != checkpoint.LayoutOf(m.Config()).Fingerprint() {
		return nil, nil, fmt.Errorf("fixture %s describes a different layout: %w", fixturePath, checkpoint.ErrLayoutMismatch)
	}
	harness := eval.NewEvalHarness(f.ToEvalConfig())

	var out [2]*eval.EvalResult
	for i, table := range []*layout.Tensor{old, proposed} {
		if err := m.SetEmbedding(table); err != nil {
			return nil, nil, err
		}
		_, summary, err := replay.ReplayModel(m, f.Cases, harness)
		if err != nil {
			return nil, nil, err
		}
		out[i] = summary.Aggregate()
	}
	if err := m.SetEmbedding(old); err != nil {
		return nil, nil, err
	}
	return out[0], out[1], nil
}

// #endregion checkpoint

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(envOr(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

// #endregion helpers
