package device

import (
	"fmt"
	"math"

	"github.com/edp1096/tiny-spice/internal/consts"
	"github.com/edp1096/tiny-spice/pkg/matrix"
	"github.com/edp1096/tiny-spice/pkg/newton"
	"github.com/edp1096/tiny-spice/pkg/util"
)

// Diode is an ideal Shockley junction from anode a to cathode b.
//
// Newton steps are not limited, so an iterate that puts more than about
// 709*Vt (18 V at room temperature) across the junction overflows the
// exponential. Stamp then fails with newton.ErrDiverged. Starting from zero,
// this happens when a source much above 18 V drives a diode through a
// resistor.
type Diode struct {
	BaseDevice
	Is    float64 // Saturation current
	TdegC float64 // Junction temperature (degC)
}

var _ NonLinear = (*Diode)(nil)

func NewDiode(name string, a, b int, is, tdegc float64) *Diode {
	return &Diode{
		BaseDevice: newBaseDevice(name, is, a, b),
		Is:         is,
		TdegC:      tdegc,
	}
}

// NewDefaultDiode uses Is = 1e-14 A at room temperature.
func NewDefaultDiode(name string, a, b int) *Diode {
	return NewDiode(name, a, b, 1e-14, consts.ROOMTEMP)
}

func (d *Diode) GetType() string { return "D" }

// Vt is the thermal voltage kT/q at the junction temperature.
func (d *Diode) Vt() float64 {
	return util.ThermalVoltage(d.TdegC)
}

// Eval returns the junction current for a junction voltage v.
func (d *Diode) Eval(v float64) float64 {
	return d.Is * (math.Exp(v/d.Vt()) - 1.0)
}

// Slope returns dI/dV at v.
func (d *Diode) Slope(v float64) float64 {
	vt := d.Vt()
	return d.Is / vt * math.Exp(v/vt)
}

func (d *Diode) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}
	n1, n2 := d.Nodes[0], d.Nodes[1]

	vd := branchVoltage(d.Nodes, status.Voltages)
	gd, ieq := newton.Linearize(d, vd)
	if math.IsInf(gd, 0) || math.IsNaN(gd) {
		return fmt.Errorf("diode %s: %w: junction voltage %g V overflows the exponential", d.Name, newton.ErrDiverged, vd)
	}

	stampConductance(matrix, n1, n2, gd+status.Gmin)
	stampCurrent(matrix, n1, n2, ieq)
	return nil
}

// Current returns the diode current for a solution vector.
func (d *Diode) Current(voltages []float64) float64 {
	return d.Eval(branchVoltage(d.Nodes, voltages))
}
