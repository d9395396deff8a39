package analysis

import (
	"fmt"

	"github.com/edp1096/tiny-spice/pkg/circuit"
	"github.com/edp1096/tiny-spice/pkg/device"
	"github.com/edp1096/tiny-spice/pkg/util"
)

// Transient integrates with backward Euler at a fixed step. Step k ends at
// t = k*TimeStep and every device is evaluated there.
type Transient struct {
	BaseAnalysis
	op     *OperatingPoint
	points []TimePoint
}

type TimePoint struct {
	Time     float64
	Voltages []float64 // index = node, [0] = ground
}

func NewTransient(config Config) *Transient {
	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(config),
		op:           NewOP(config),
	}
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	if err := tr.setupCircuit(ckt); err != nil {
		return err
	}

	if tr.config.UseOperatingPoint {
		if err := tr.op.Setup(ckt); err != nil {
			return fmt.Errorf("operating point setup error: %w", err)
		}
	}
	return nil
}

func (tr *Transient) Execute() error {
	if tr.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	ckt := tr.Circuit
	dt := tr.config.TimeStep
	history := make([]float64, len(ckt.Devices()))
	x := make([]float64, ckt.MatrixSize()+1)

	if tr.config.UseOperatingPoint {
		if err := tr.op.Execute(); err != nil {
			return err
		}
		copy(x, tr.op.Solution())
		for _, td := range ckt.TimeDependentDevices() {
			history[td.GetIndex()] = td.NextState(x)
		}
		if tr.config.StartTime <= 0 {
			tr.record(0, x)
		}
	} else {
		for _, td := range ckt.TimeDependentDevices() {
			history[td.GetIndex()] = td.InitialState()
		}
	}

	status := &device.CircuitStatus{
		TimeStep: dt,
		Gmin:     tr.config.Gmin,
		Mode:     device.TransientAnalysis,
		History:  history,
	}

	tr.logger.Printf("transient of %q: %d steps of %s", ckt.Name(), tr.config.Steps, util.FormatValueFactor(dt, "s"))

	for step := 1; step <= tr.config.Steps; step++ {
		t := float64(step) * dt
		status.Time = t

		solution, iterations, err := tr.doNRiter(status, x)
		if err != nil {
			return &ConvergenceError{Analysis: "tran", Step: step, Time: t, Iterations: iterations, Err: err}
		}

		if t >= tr.config.StartTime {
			tr.record(t, solution)
		}

		for _, td := range ckt.TimeDependentDevices() {
			history[td.GetIndex()] = td.NextState(solution)
		}
		x = solution
	}

	return nil
}

func (tr *Transient) record(t float64, solution []float64) {
	voltages := make([]float64, tr.Circuit.NumNodes())
	copy(voltages[1:], solution[1:tr.Circuit.NumNodes()])
	tr.points = append(tr.points, TimePoint{Time: t, Voltages: voltages})
	tr.StoreTimeResult(t, solution)
}

func (tr *Transient) Points() []TimePoint {
	return tr.points
}

func (tr *Transient) Destroy() {
	tr.BaseAnalysis.Destroy()
	tr.op.Destroy()
}
