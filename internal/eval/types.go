package eval

// #region eval-config
// EvalConfig holds thresholds for a concept evaluation run.
type EvalConfig struct {
	MinAccuracy float64 // fail if accuracy drops below this
	MaxLoss     float64 // fail if mean cross-entropy exceeds this (0 = disabled)
	RangeSlack  float64 // allowed numeric drift outside [0, 1]
}

// DefaultEvalConfig returns the thresholds used by the replay command.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinAccuracy: 0.5,
		MaxLoss:     0,
		RangeSlack:  1e-9,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of an evaluation run.
type EvalResult struct {
	Passed   bool
	Accuracy float64
	Loss     float64
	Metrics  []EvalMetric
	Reason   string

	// IndexAccuracy is set by RunProduct: one entry per concept domain.
	IndexAccuracy []float64
}

// #endregion eval-result
