package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema
const schema = `CREATE TABLE IF NOT EXISTS evaluation_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	checkpoint_id TEXT,
	source        TEXT NOT NULL,
	concept_kind  TEXT NOT NULL,
	cases         INTEGER NOT NULL,
	passed        INTEGER NOT NULL,
	accuracy      REAL NOT NULL,
	loss          REAL NOT NULL,
	metrics_json  TEXT,
	reason        TEXT,
	created_at    TEXT NOT NULL
)`

// EnsureSchema creates the evaluation_log table if needed.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create evaluation_log: %w", err)
	}
	return nil
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region log-evaluation
// LogEvaluation writes an evaluation entry to the evaluation_log table and
// returns its run ID, generating one when entry.RunID is empty.
func LogEvaluation(db *sql.DB, entry EvaluationEntry) (string, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.RunID == "" {
		entry.RunID = uuid.New().String()
	}

	_, err := db.Exec(
		`INSERT INTO evaluation_log (run_id, checkpoint_id, source, concept_kind, cases, passed, accuracy, loss, metrics_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		nullIfEmpty(entry.CheckpointID),
		entry.Source,
		entry.ConceptKind,
		entry.Cases,
		boolToInt(entry.Passed),
		entry.Accuracy,
		entry.Loss,
		nullIfEmpty(entry.MetricsJSON),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("log evaluation: %w", err)
	}
	return entry.RunID, nil
}

// #endregion log-evaluation

// #region list-evaluations
// ListEvaluations returns the most recent entries, newest first.
func ListEvaluations(db *sql.DB, limit int) ([]EvaluationEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, checkpoint_id, source, concept_kind, cases, passed, accuracy, loss, metrics_json, reason, created_at
		 FROM evaluation_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var entries []EvaluationEntry
	for rows.Next() {
		var e EvaluationEntry
		var checkpointID, metricsJSON, reason sql.NullString
		var passed int
		var createdStr string
		if err := rows.Scan(&e.RunID, &checkpointID, &e.Source, &e.ConceptKind, &e.Cases, &passed,
			&e.Accuracy, &e.Loss, &metricsJSON, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		e.CheckpointID = checkpointID.String
		e.MetricsJSON = metricsJSON.String
		e.Reason = reason.String
		e.Passed = passed != 0
		e.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-evaluations

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
