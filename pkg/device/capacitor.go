package device

import (
	"fmt"

	"github.com/edp1096/tiny-spice/pkg/matrix"
)

// Capacitor is discretized with the backward Euler companion model during
// transient analysis and left open at the operating point.
type Capacitor struct {
	BaseDevice
	IC float64 // Initial voltage across a-b
}

var _ TimeDependent = (*Capacitor)(nil)

func NewCapacitor(name string, a, b int, value float64) *Capacitor {
	return &Capacitor{BaseDevice: newBaseDevice(name, value, a, b)}
}

func NewCapacitorIC(name string, a, b int, value, ic float64) *Capacitor {
	c := NewCapacitor(name, a, b, value)
	c.IC = ic
	return c
}

func (c *Capacitor) GetType() string { return "C" }

// Companion returns the backward Euler equivalent for one step of length dt
// starting from vPrev: geq = C/dt and ieq = geq*vPrev.
func (c *Capacitor) Companion(vPrev, dt float64) (geq, ieq float64) {
	geq = c.Value / dt
	ieq = geq * vPrev
	return geq, ieq
}

func (c *Capacitor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(c.Nodes) != 2 {
		return fmt.Errorf("capacitor %s: requires exactly 2 nodes", c.Name)
	}
	n1, n2 := c.Nodes[0], c.Nodes[1]

	switch status.Mode {
	case OperatingPointAnalysis:
		// Open circuit. A gmin shunt is the only thing allowed through.
		if status.Gmin > 0 {
			stampConductance(matrix, n1, n2, status.Gmin)
		}

	case TransientAnalysis:
		if status.TimeStep <= 0 {
			return fmt.Errorf("capacitor %s: invalid time step %g", c.Name, status.TimeStep)
		}
		geq, ieq := c.Companion(status.State(c.Index), status.TimeStep)
		stampConductance(matrix, n1, n2, geq)
		stampCurrent(matrix, n2, n1, ieq)
	}

	return nil
}

func (c *Capacitor) InitialState() float64 {
	return c.IC
}

func (c *Capacitor) NextState(voltages []float64) float64 {
	return branchVoltage(c.Nodes, voltages)
}
