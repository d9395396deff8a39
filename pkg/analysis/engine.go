package analysis

import (
	"fmt"
	"io"
	"sync"

	"github.com/edp1096/tiny-spice/pkg/circuit"
)

const Version = "0.1.0"

// Engine runs analyses with one Config, one analysis at a time. Circuits are
// only read, so engines may share a circuit.
type Engine struct {
	mu     sync.Mutex
	config Config
}

type OPResult struct {
	Voltages   []float64          // index = node, [0] = ground
	Currents   map[string]float64 // per voltage source, out of its + terminal
	Iterations int
}

type TranResult struct {
	Points  []TimePoint
	Results map[string][]float64 // TIME, V(n) and I(name) series
}

type SweepResult struct {
	Results map[string][]float64 // SWEEP1[, SWEEP2], V(n) and I(name) series
}

func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{config: config}, nil
}

func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) DCOperatingPoint(ckt *circuit.Circuit) (*OPResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	op := NewOP(e.config)
	defer op.Destroy()

	if err := op.Setup(ckt); err != nil {
		return nil, err
	}
	if err := op.Execute(); err != nil {
		return nil, err
	}

	solution := op.Solution()
	result := &OPResult{
		Voltages:   make([]float64, ckt.NumNodes()),
		Currents:   make(map[string]float64, ckt.NumBranches()),
		Iterations: op.Iterations(),
	}
	copy(result.Voltages[1:], solution[1:ckt.NumNodes()])
	for _, v := range ckt.VoltageSources() {
		result.Currents[v.GetName()] = -solution[v.BranchIndex()]
	}

	return result, nil
}

func (e *Engine) TransientAnalysis(ckt *circuit.Circuit) (*TranResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tr := NewTransient(e.config)
	defer tr.Destroy()

	if err := tr.Setup(ckt); err != nil {
		return nil, err
	}
	if err := tr.Execute(); err != nil {
		return nil, err
	}

	return &TranResult{Points: tr.Points(), Results: tr.GetResults()}, nil
}

func (e *Engine) DCSweep(ckt *circuit.Circuit, sweeps ...Sweep) (*SweepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dc := NewDCSweep(e.config, sweeps...)
	defer dc.Destroy()

	if err := dc.Setup(ckt); err != nil {
		return nil, err
	}
	if err := dc.Execute(); err != nil {
		return nil, err
	}

	return &SweepResult{Results: dc.GetResults()}, nil
}

// Banner writes the simulator identification line.
func Banner(w io.Writer) {
	fmt.Fprintf(w, "tiny-spice %s: DC operating point, DC sweep and fixed-step transient\n", Version)
}
