package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoShape      VetoType = "shape_mismatch"
	VetoNonFinite  VetoType = "non_finite"
	VetoDeltaNorm  VetoType = "delta_norm"
	VetoEvalFailed VetoType = "eval_failed"
	VetoRegression VetoType = "accuracy_regression"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for promoting an embedding table to a new
// checkpoint.
type GateConfig struct {
	MaxDeltaNorm    float64 // max L2 norm of proposed - active (0 = disabled)
	MaxAccuracyDrop float64 // allowed accuracy loss against the active table
}

// DefaultGateConfig returns the thresholds used by the import command.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxDeltaNorm:    0,
		MaxAccuracyDrop: 0.05,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal
	DeltaNorm   float64
	SoftScore   float64 // 0-1, logged only
}

// #endregion gate-decision
