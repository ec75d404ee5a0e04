package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/danielpatrickdp/qconcept/internal/checkpoint"
	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/logging"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to qconcept.db")
	last := flag.Int("last", 20, "show N most recent checkpoints")
	id := flag.String("checkpoint", "", "show single checkpoint detail")
	evals := flag.Bool("evals", false, "list evaluation runs instead of checkpoints")
	rollback := flag.String("rollback", "", "make the given checkpoint active")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/qconcept.db [--last N] [--checkpoint id] [--evals] [--rollback id] [--json]")
		os.Exit(2)
	}

	store, err := checkpoint.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *rollback != "":
		err = store.Rollback(*rollback)
		if err == nil {
			fmt.Printf("active checkpoint: %s\n", *rollback)
		}
	case *evals:
		err = runEvalMode(store, *last, *jsonOut)
	case *id != "":
		err = runDetailMode(store, *id, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	CheckpointID string  `json:"checkpoint_id"`
	ParentID     string  `json:"parent_id,omitempty"`
	Active       bool    `json:"active"`
	Kind         string  `json:"kind"`
	Layers       int     `json:"layers"`
	Rows         int     `json:"rows"`
	Cols         int     `json:"cols"`
	Norm         float64 `json:"norm"`
	CreatedAt    string  `json:"created_at"`
}

func runListMode(store *checkpoint.Store, last int, jsonOut bool) error {
	records, err := store.List(last)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no checkpoints found")
		return nil
	}
	var activeID string
	if current, err := store.GetCurrent(); err == nil {
		activeID = current.CheckpointID
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(records))
	for i, rec := range records {
		rows[len(records)-1-i] = listRow{
			CheckpointID: rec.CheckpointID,
			ParentID:     rec.ParentID,
			Active:       rec.CheckpointID == activeID,
			Kind:         rec.Layout.Kind,
			Layers:       rec.Layout.Layers,
			Rows:         rec.Layout.Rows,
			Cols:         rec.Layout.Cols,
			Norm:         tableNorm(rec.Embedding),
			CreatedAt:    rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-10s  %-12s  %6s  %9s  %8s  %s\n",
		"Checkpoint", "Parent", "Kind", "Layers", "Table", "Norm", "Time")
	fmt.Printf("%-10s+-%-10s+-%-12s+-%6s+-%9s+-%8s+-%s\n",
		"----------", "----------", "------------", "------", "---------", "--------", "--------------------")
	for _, r := range rows {
		marker := " "
		if r.Active {
			marker = "*"
		}
		parent := "-"
		if r.ParentID != "" {
			parent = shortID(r.ParentID)
		}
		fmt.Printf("%s%-9s  %-10s  %-12s  %6d  %9s  %8.4f  %s\n",
			marker, shortID(r.CheckpointID), parent, r.Kind, r.Layers,
			fmt.Sprintf("%dx%d", r.Rows, r.Cols), r.Norm, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	CheckpointID string            `json:"checkpoint_id"`
	ParentID     string            `json:"parent_id"`
	CreatedAt    string            `json:"created_at"`
	Fingerprint  string            `json:"fingerprint"`
	Layout       checkpoint.Layout `json:"layout"`
	Rows         []rowDetail       `json:"rows"`
	Metrics      json.RawMessage   `json:"metrics,omitempty"`
}

type rowDetail struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
	Norm   float64   `json:"norm"`
}

func runDetailMode(store *checkpoint.Store, id string, jsonOut bool) error {
	rec, err := store.Get(id)
	if err != nil {
		return err
	}
	cfg, err := rec.Layout.Config()
	if err != nil {
		return fmt.Errorf("rebuild layout: %w", err)
	}
	labels, err := rowLabels(cfg)
	if err != nil {
		return err
	}

	out := detailOutput{
		CheckpointID: rec.CheckpointID,
		ParentID:     rec.ParentID,
		CreatedAt:    rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Fingerprint:  rec.Layout.Fingerprint(),
		Layout:       rec.Layout,
	}
	if rec.MetricsJSON != "" {
		out.Metrics = json.RawMessage(rec.MetricsJSON)
	}
	for r := 0; r < rec.Embedding.Dim(0); r++ {
		row := rec.Embedding.Row(r)
		out.Rows = append(out.Rows, rowDetail{Label: labels[r], Values: row, Norm: norm(row)})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Checkpoint:  %s\n", out.CheckpointID)
	fmt.Printf("Parent:      %s\n", out.ParentID)
	fmt.Printf("Created:     %s\n", out.CreatedAt)
	fmt.Printf("Kind:        %s (layers %d)\n", out.Layout.Kind, out.Layout.Layers)
	fmt.Printf("Domains:     %v\n", out.Layout.InstanceDomains)
	fmt.Printf("Concepts:    %v\n", out.Layout.ConceptDomains)
	fmt.Printf("Fingerprint: %s\n", shortID(out.Fingerprint))

	fmt.Printf("\nEmbedding rows:\n")
	for _, r := range out.Rows {
		fmt.Printf("  %-20s norm %.4f\n", r.Label, r.Norm)
	}
	return nil
}

// rowLabels names embedding rows: "domain/label" for product tables, a
// single "shared" row otherwise.
func rowLabels(cfg *concept.Config) ([]string, error) {
	if cfg.Kind() != concept.KindProduct {
		return []string{"shared"}, nil
	}
	flat := make([]int, cfg.NumConcepts())
	for i := range flat {
		flat[i] = i
	}
	names, err := cfg.DecodeConcept(flat)
	if err != nil {
		return nil, err
	}
	domains := cfg.InstanceDomains()
	p := cfg.NumProperties()
	for i := range names {
		names[i] = domains[i/p] + "/" + names[i]
	}
	return names, nil
}

// #endregion detail-mode

// #region eval-mode

type evalRow struct {
	RunID        string  `json:"run_id"`
	CheckpointID string  `json:"checkpoint_id,omitempty"`
	Source       string  `json:"source"`
	Kind         string  `json:"kind"`
	Cases        int     `json:"cases"`
	Passed       bool    `json:"passed"`
	Accuracy     float64 `json:"accuracy"`
	Loss         float64 `json:"loss"`
	Reason       string  `json:"reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func runEvalMode(store *checkpoint.Store, last int, jsonOut bool) error {
	if err := logging.EnsureSchema(store.DB()); err != nil {
		return err
	}
	entries, err := logging.ListEvaluations(store.DB(), last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no evaluations found")
		return nil
	}

	rows := make([]evalRow, len(entries))
	for i, e := range entries {
		rows[i] = evalRow{
			RunID:        e.RunID,
			CheckpointID: e.CheckpointID,
			Source:       e.Source,
			Kind:         e.ConceptKind,
			Cases:        e.Cases,
			Passed:       e.Passed,
			Accuracy:     e.Accuracy,
			Loss:         e.Loss,
			Reason:       e.Reason,
			CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-12s  %5s  %-6s  %8s  %8s  %s\n", "Run", "Kind", "Cases", "Result", "Accuracy", "Loss", "Source")
	fmt.Printf("%-10s+-%-12s+-%5s+-%-6s+-%8s+-%8s+-%s\n",
		"----------", "------------", "-----", "------", "--------", "--------", "--------------------")
	for _, r := range rows {
		result := "PASS"
		if !r.Passed {
			result = "FAIL"
		}
		fmt.Printf("%-10s  %-12s  %5d  %-6s  %8.4f  %8.4f  %s\n",
			shortID(r.RunID), r.Kind, r.Cases, result, r.Accuracy, r.Loss, r.Source)
	}
	return nil
}

// #endregion eval-mode

// #region output

func tableNorm(t *layout.Tensor) float64 {
	if t == nil {
		return 0
	}
	return norm(t.Data())
}

func norm(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
