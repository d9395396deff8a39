package analysis

import (
	"fmt"

	"github.com/edp1096/tiny-spice/pkg/util"
)

// ConvergenceError reports where an analysis gave up. Err is the cause:
// newton.ErrNoConvergence, newton.ErrDiverged or matrix.ErrSingularMatrix.
type ConvergenceError struct {
	Analysis   string
	Step       int     // transient step or sweep point, 0 for the operating point
	Time       float64 // s, transient only
	Iterations int
	Err        error
}

func (e *ConvergenceError) Error() string {
	switch e.Analysis {
	case "tran":
		return fmt.Sprintf("tran: step %d at t=%s failed after %d iterations: %v",
			e.Step, util.FormatValueFactor(e.Time, "s"), e.Iterations, e.Err)
	case "dc":
		return fmt.Sprintf("dc: sweep point %d failed after %d iterations: %v", e.Step, e.Iterations, e.Err)
	default:
		return fmt.Sprintf("%s: failed after %d iterations: %v", e.Analysis, e.Iterations, e.Err)
	}
}

func (e *ConvergenceError) Unwrap() error {
	return e.Err
}
