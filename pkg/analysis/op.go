package analysis

import (
	"fmt"

	"github.com/edp1096/tiny-spice/pkg/circuit"
	"github.com/edp1096/tiny-spice/pkg/device"
)

// OperatingPoint solves the DC state: capacitors open, sources at t = 0,
// Newton started from all zeros.
type OperatingPoint struct {
	BaseAnalysis
	solution   []float64
	iterations int
}

func NewOP(config Config) *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(config),
	}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	return op.setupCircuit(ckt)
}

func (op *OperatingPoint) Execute() error {
	if op.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	solution, iterations, err := op.solve(nil)
	op.iterations = iterations
	if err != nil {
		return err
	}

	op.solution = solution
	op.storeSolution(solution)
	op.logger.Printf("operating point of %q converged in %d iterations", op.Circuit.Name(), iterations)

	return nil
}

func (op *OperatingPoint) solve(overrides map[string]float64) ([]float64, int, error) {
	status := &device.CircuitStatus{
		Time:      0,
		Mode:      device.OperatingPointAnalysis,
		Gmin:      op.config.Gmin,
		Overrides: overrides,
	}

	guess := make([]float64, op.Circuit.MatrixSize()+1)
	solution, iterations, err := op.doNRiter(status, guess)
	if err != nil {
		return nil, iterations, &ConvergenceError{Analysis: "op", Iterations: iterations, Err: err}
	}
	return solution, iterations, nil
}

// Solution is the 1-based solution vector of the last Execute.
func (op *OperatingPoint) Solution() []float64 {
	return op.solution
}

func (op *OperatingPoint) Iterations() int {
	return op.iterations
}
