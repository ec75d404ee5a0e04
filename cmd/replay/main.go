package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/qconcept/internal/checkpoint"
	"github.com/danielpatrickdp/qconcept/internal/eval"
	"github.com/danielpatrickdp/qconcept/internal/logging"
	"github.com/danielpatrickdp/qconcept/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", envOr("QCONCEPT_DB", ""), "checkpoint database; results are logged to evaluation_log when set")
	useCheckpoint := flag.Bool("checkpoint", false, "replay with the active checkpoint's embedding instead of the fixture's")
	logMode := flag.String("log", envOr("QCONCEPT_LOG", "dev"), "log mode: dev or prod")
	flag.Parse()

	if flag.NArg() == 0 || (*useCheckpoint && *dbPath == "") {
		fmt.Fprintln(os.Stderr, "usage: replay [--db path/to/qconcept.db [--checkpoint]] fixture.json...")
		os.Exit(2)
	}

	logger, err := logging.New(*logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	var store *checkpoint.Store
	if *dbPath != "" {
		store, err = checkpoint.NewStore(*dbPath)
		if err != nil {
			logger.Fatal("open db", "path", *dbPath, "error", err)
		}
		defer store.Close()
		if err := logging.EnsureSchema(store.DB()); err != nil {
			logger.Fatal("evaluation schema", "error", err)
		}
	}

	exitCode := 0
	for _, path := range flag.Args() {
		code, err := runFixture(path, store, *useCheckpoint, logger)
		if err != nil {
			logger.Error("replay fixture", "fixture", path, "error", err)
			code = 2
		}
		if code > exitCode {
			exitCode = code
		}
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixture(path string, store *checkpoint.Store, useCheckpoint bool, logger *logging.Logger) (int, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return 2, err
	}
	cfg, err := f.ToConfig()
	if err != nil {
		return 2, err
	}
	m, err := f.ToModel(cfg)
	if err != nil {
		return 2, err
	}

	var checkpointID string
	if useCheckpoint {
		current, err := store.GetCurrent()
		if err != nil {
			return 2, err
		}
		table, err := store.Load(current.CheckpointID, cfg)
		if err != nil {
			return 2, err
		}
		if err := m.SetEmbedding(table); err != nil {
			return 2, err
		}
		checkpointID = current.CheckpointID
	}

	results, summary, err := replay.ReplayModel(m, f.Cases, eval.NewEvalHarness(f.ToEvalConfig()))
	if err != nil {
		return 2, err
	}

	fmt.Printf("\n%s (%s)\n", path, summary.Kind)
	printResults(results)
	fmt.Printf("\nSummary: %d total, %d pass, %d fail, mean accuracy %.4f, mean loss %.4f\n",
		summary.TotalCases, summary.Passed, summary.Failed, summary.MeanAcc, summary.MeanLoss)
	for j, acc := range summary.MeanIndexAcc {
		fmt.Printf("Index accuracy, concept domain %d: %.4f\n", j, acc)
	}

	if store != nil {
		runID, err := logEvaluation(store, path, checkpointID, summary, results)
		if err != nil {
			return 2, err
		}
		logger.Info("evaluation logged", "run_id", runID, "fixture", path)
	}

	if summary.Failed > 0 {
		return 1, nil
	}
	return 0, nil
}

func logEvaluation(store *checkpoint.Store, path, checkpointID string, summary replay.ReplaySummary, results []replay.CaseResult) (string, error) {
	type caseMetrics struct {
		Name    string  `json:"name"`
		Passed  bool    `json:"passed"`
		MaxDiff float64 `json:"max_diff"`
		Reason  string  `json:"reason"`
	}
	cases := make([]caseMetrics, len(results))
	reason := "all cases passed"
	for i, r := range results {
		cases[i] = caseMetrics{Name: r.Name, Passed: r.Passed, MaxDiff: r.MaxDiff, Reason: r.Reason}
		if !r.Passed && reason == "all cases passed" {
			reason = fmt.Sprintf("%s: %s", r.Name, r.Reason)
		}
	}
	metricsJSON, err := json.Marshal(cases)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	return logging.LogEvaluation(store.DB(), logging.EvaluationEntry{
		CheckpointID: checkpointID,
		Source:       path,
		ConceptKind:  summary.Kind.String(),
		Cases:        summary.TotalCases,
		Passed:       summary.Failed == 0,
		Accuracy:     summary.MeanAcc,
		Loss:         summary.MeanLoss,
		MetricsJSON:  string(metricsJSON),
		Reason:       reason,
	})
}

// #endregion fixture-mode

// #region output

func printResults(results []replay.CaseResult) {
	fmt.Printf("%-36s| %-10s| %-10s| %s\n", "Case", "Max Diff", "Accuracy", "Result")
	fmt.Printf("%-36s+%-11s+%-11s+%s\n",
		"------------------------------------", "-----------", "-----------", "------")
	for _, r := range results {
		acc := "-"
		if r.Eval != nil {
			acc = fmt.Sprintf("%.4f", r.Eval.Accuracy)
		}
		status := "OK"
		if !r.Passed {
			status = "FAIL " + r.Reason
		}
		fmt.Printf("%-36s| %-10.3g| %-10s| %s\n", truncate(r.Name, 36), r.MaxDiff, acc, status)
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-1] + "~"
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
