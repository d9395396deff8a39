package analysis

import (
	"fmt"
	"io"
	"log"
	"math"

	"github.com/edp1096/tiny-spice/pkg/circuit"
	"github.com/edp1096/tiny-spice/pkg/device"
	"github.com/edp1096/tiny-spice/pkg/matrix"
	"github.com/edp1096/tiny-spice/pkg/newton"
	"github.com/edp1096/tiny-spice/pkg/util"
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute() error
	GetResults() map[string][]float64
	Destroy()
}

// Config holds the convergence controls, the solver choice and the
// transient timing shared by every analysis.
type Config struct {
	MaxIter    int
	Reltol     float64
	VoltageTol float64 // V, also the branch-row residual bound
	CurrentTol float64 // A, node-row residual bound
	Gmin       float64 // S, shunt across capacitors at the operating point
	Solver     matrix.Kind

	TimeStep          float64 // s
	Steps             int
	StartTime         float64 // s, earlier points are computed but not recorded
	UseOperatingPoint bool    // start the transient from the DC solution instead of capacitor ICs

	Logger  *log.Logger
	Verbose bool
}

func DefaultConfig() Config {
	return Config{
		MaxIter:    500,
		Reltol:     1e-6,
		VoltageTol: newton.VoltageTol,
		CurrentTol: newton.CurrentTol,
		Gmin:       0,
		Solver:     matrix.KindSparse,
		TimeStep:   1e-4,
		Steps:      1000,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxIter <= 0:
		return fmt.Errorf("invalid config: maxiter %d must be positive", c.MaxIter)
	case c.Reltol < 0 || math.IsNaN(c.Reltol):
		return fmt.Errorf("invalid config: reltol %g", c.Reltol)
	case !(c.VoltageTol > 0) || !(c.CurrentTol > 0):
		return fmt.Errorf("invalid config: tolerances %g V, %g A must be positive", c.VoltageTol, c.CurrentTol)
	case c.Gmin < 0 || math.IsNaN(c.Gmin):
		return fmt.Errorf("invalid config: gmin %g", c.Gmin)
	case !(c.TimeStep > 0) || math.IsInf(c.TimeStep, 0):
		return fmt.Errorf("invalid config: time step %g must be positive", c.TimeStep)
	case c.Steps <= 0:
		return fmt.Errorf("invalid config: steps %d must be positive", c.Steps)
	case c.StartTime < 0 || math.IsNaN(c.StartTime):
		return fmt.Errorf("invalid config: start time %g", c.StartTime)
	}
	if _, err := matrix.ParseKind(string(c.Solver)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// StopTime is the end of the last transient step.
func (c Config) StopTime() float64 {
	return float64(c.Steps) * c.TimeStep
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	results map[string][]float64 // key: variable name, value: result by time or sweep point
	config  Config
	logger  *log.Logger
	solver  matrix.Solver
	dumped  bool
}

func NewBaseAnalysis(config Config) *BaseAnalysis {
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &BaseAnalysis{
		results: make(map[string][]float64),
		config:  config,
		logger:  logger,
	}
}

// setupCircuit prepares the circuit layout and a solver sized for it.
func (a *BaseAnalysis) setupCircuit(ckt *circuit.Circuit) error {
	if err := ckt.Setup(); err != nil {
		return err
	}
	a.Circuit = ckt

	if a.solver != nil {
		a.solver.Destroy()
	}
	solver, err := matrix.New(a.config.Solver, ckt.MatrixSize())
	if err != nil {
		return err
	}
	a.solver = solver
	return nil
}

// Destroy releases the solver.
func (a *BaseAnalysis) Destroy() {
	if a.solver != nil {
		a.solver.Destroy()
		a.solver = nil
	}
}

// CheckConvergence reports whether every unknown moved by no more than
// reltol*max(|new|,|old|) + VoltageTol.
func (a *BaseAnalysis) CheckConvergence(oldSol, newSol []float64) bool {
	if len(oldSol) != len(newSol) {
		return false
	}

	for i := 1; i < len(newSol); i++ {
		if !util.NearlyEqual(newSol[i], oldSol[i], a.config.VoltageTol, a.config.Reltol) {
			return false
		}
	}
	return true
}

// doNRiter runs the Newton-Raphson loop from guess and returns the accepted
// solution together with the number of linear solves spent on it.
func (a *BaseAnalysis) doNRiter(status *device.CircuitStatus, guess []float64) ([]float64, int, error) {
	var err error

	ckt := a.Circuit
	size := ckt.MatrixSize()
	nodeRows := ckt.NumNodes() - 1
	nonlinear := len(ckt.NonlinearDevices()) > 0
	maxIter := a.config.MaxIter

	x := make([]float64, size+1)
	copy(x, guess)
	solves := 0

	for iter := range maxIter {
		status.Voltages = x
		a.solver.Clear()
		residual := matrix.NewResidual(x)

		err = ckt.Stamp(matrix.Fanout(a.solver, residual), status)
		if err != nil {
			return nil, solves, err
		}

		if a.config.Verbose && !a.dumped {
			a.solver.PrintSystem(a.logger.Writer())
			a.dumped = true
		}

		err = a.solver.Solve()
		solves++
		if err != nil {
			return nil, solves, err
		}

		solution := a.solver.Solution()
		if !util.IsFinite(solution[1:]) {
			return nil, solves, fmt.Errorf("%w at iteration %d", newton.ErrDiverged, iter)
		}

		if !nonlinear {
			return cloneSolution(solution, size), solves, nil
		}

		if a.config.Verbose {
			a.logger.Printf("%s t=%s iteration %d: max residual %g", status.Mode, util.FormatValueFactor(status.Time, "s"),
				iter, residual.MaxAbs(1, size))
		}

		// Both the update and the KCL residual at the linearization point
		// must be small.
		if iter > 0 && a.CheckConvergence(x, solution) &&
			residual.Within(1, nodeRows, a.config.CurrentTol, a.config.Reltol) &&
			residual.Within(nodeRows+1, size, a.config.VoltageTol, a.config.Reltol) {
			return cloneSolution(solution, size), solves, nil
		}

		copy(x[1:], solution[1:])
	}

	return nil, solves, fmt.Errorf("%w in %d iterations", newton.ErrNoConvergence, maxIter)
}

func cloneSolution(solution []float64, size int) []float64 {
	x := make([]float64, size+1)
	copy(x[1:], solution[1:])
	return x
}

// storeSolution appends one named sample per node voltage and per voltage
// source current.
func (a *BaseAnalysis) storeSolution(solution []float64) {
	ckt := a.Circuit
	for n := 1; n < ckt.NumNodes(); n++ {
		a.appendResult(util.FormatNodeName(n), solution[n])
	}
	for _, v := range ckt.VoltageSources() {
		// Current leaving the + terminal into the circuit.
		a.appendResult(util.FormatBranchName(v.GetName()), -solution[v.BranchIndex()])
	}
}

func (a *BaseAnalysis) StoreTimeResult(time float64, solution []float64) {
	// Ignore same time
	if times := a.results["TIME"]; len(times) > 0 && times[len(times)-1] == time {
		return
	}

	a.appendResult("TIME", time)
	a.storeSolution(solution)
}

func (a *BaseAnalysis) appendResult(name string, value float64) {
	if _, exists := a.results[name]; !exists {
		a.results[name] = make([]float64, 0)
	}
	a.results[name] = append(a.results[name], value)
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}
