package device

import (
	"fmt"

	"github.com/edp1096/tiny-spice/pkg/matrix"
)

type Resistor struct {
	BaseDevice
}

func NewResistor(name string, a, b int, value float64) *Resistor {
	return &Resistor{BaseDevice: newBaseDevice(name, value, a, b)}
}

func (r *Resistor) GetType() string { return "R" }

// Conductance is 1/R. A resistor injects no offset current.
func (r *Resistor) Conductance() float64 {
	return 1.0 / r.Value
}

func (r *Resistor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(r.Nodes) != 2 {
		return fmt.Errorf("resistor %s: requires exactly 2 nodes", r.Name)
	}

	stampConductance(matrix, r.Nodes[0], r.Nodes[1], r.Conductance())
	return nil
}

// Current returns the current from node a to node b for a solution vector.
func (r *Resistor) Current(voltages []float64) float64 {
	return branchVoltage(r.Nodes, voltages) * r.Conductance()
}
