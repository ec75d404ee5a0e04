package logging

import "time"

// #region evaluation-entry
// EvaluationEntry is a single row in the evaluation_log table.
type EvaluationEntry struct {
	RunID        string
	CheckpointID string
	Source       string // fixture path or "cli"
	ConceptKind  string
	Cases        int
	Passed       bool
	Accuracy     float64
	Loss         float64
	MetricsJSON  string
	Reason       string
	CreatedAt    time.Time
}

// #endregion evaluation-entry
