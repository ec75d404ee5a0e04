package concept

import "errors"

// #region errors
// Error taxonomy shared by the concept, layout, circuit and qsim packages.
// Callers branch with errors.Is; every returned error wraps one of these.
var (
	// ErrConfig marks a malformed declaration or concept variant.
	ErrConfig = errors.New("config error")
	// ErrShape marks a parameter tensor whose shape does not match the layout.
	ErrShape = errors.New("shape error")
	// ErrIndex marks a property or flat concept index outside its declared range.
	ErrIndex = errors.New("index error")
)

// #endregion errors
