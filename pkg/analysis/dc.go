package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/edp1096/tiny-spice/pkg/circuit"
	"github.com/edp1096/tiny-spice/pkg/device"
)

// Sweep steps one independent source from Start to Stop by Step.
type Sweep struct {
	Source string
	Start  float64
	Stop   float64
	Step   float64
}

// Values lists the sweep points. Stop is included when it lies on the grid.
func (s Sweep) Values() ([]float64, error) {
	if s.Step == 0 || math.IsNaN(s.Step) || math.IsInf(s.Step, 0) {
		return nil, fmt.Errorf("sweep %s: invalid increment %g", s.Source, s.Step)
	}
	n := (s.Stop - s.Start) / s.Step
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("sweep %s: %g to %g never reached with increment %g", s.Source, s.Start, s.Stop, s.Step)
	}

	count := int(math.Floor(n+1e-9)) + 1
	values := make([]float64, count)
	for i := range values {
		values[i] = s.Start + float64(i)*s.Step
	}
	return values, nil
}

// DCSweep repeats the operating point over one or two nested source sweeps.
// Source values are passed as overrides so the circuit is left untouched.
type DCSweep struct {
	BaseAnalysis
	sweeps    []Sweep
	sweepVals [][]float64
	op        *OperatingPoint
}

func NewDCSweep(config Config, sweeps ...Sweep) *DCSweep {
	return &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(config),
		sweeps:       sweeps,
		op:           NewOP(config),
	}
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	if len(dc.sweeps) == 0 || len(dc.sweeps) > 2 {
		return fmt.Errorf("unsupported number of sweep sources: %d", len(dc.sweeps))
	}
	if err := dc.op.Setup(ckt); err != nil {
		return err
	}
	dc.Circuit = ckt

	dc.sweepVals = make([][]float64, len(dc.sweeps))
	for i, sw := range dc.sweeps {
		if !isSource(ckt, sw.Source) {
			return fmt.Errorf("source %s not found", sw.Source)
		}
		values, err := sw.Values()
		if err != nil {
			return err
		}
		dc.sweepVals[i] = values
	}

	return nil
}

func isSource(ckt *circuit.Circuit, name string) bool {
	for _, dev := range ckt.Devices() {
		if dev.GetName() != name {
			continue
		}
		switch dev.(type) {
		case *device.VoltageSource, *device.CurrentSourceSine:
			return true
		}
	}
	return false
}

func (dc *DCSweep) Execute() error {
	if dc.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	inner := []float64{math.NaN()}
	if len(dc.sweeps) == 2 {
		inner = dc.sweepVals[1]
	}

	point := 0
	for _, val1 := range dc.sweepVals[0] {
		for _, val2 := range inner {
			point++
			overrides := map[string]float64{dc.sweeps[0].Source: val1}
			if len(dc.sweeps) == 2 {
				overrides[dc.sweeps[1].Source] = val2
			}

			solution, _, err := dc.op.solve(overrides)
			if err != nil {
				var ce *ConvergenceError
				if errors.As(err, &ce) {
					ce.Analysis = "dc"
					ce.Step = point
				}
				return err
			}

			dc.appendResult("SWEEP1", val1)
			if len(dc.sweeps) == 2 {
				dc.appendResult("SWEEP2", val2)
			}
			dc.storeSolution(solution)
		}
	}

	dc.logger.Printf("dc sweep of %q: %d points", dc.Circuit.Name(), point)
	return nil
}

func (dc *DCSweep) Destroy() {
	dc.op.Destroy()
}
