package device

import (
	"fmt"

	"github.com/edp1096/tiny-spice/pkg/matrix"
)

// VoltageSource holds V(p) - V(n) = Value through an extra MNA branch row.
type VoltageSource struct {
	BaseDevice
	branchIdx int
}

var _ BranchDevice = (*VoltageSource)(nil)

func NewVoltageSource(name string, p, n int, value float64) *VoltageSource {
	return &VoltageSource{BaseDevice: newBaseDevice(name, value, p, n)}
}

func (v *VoltageSource) GetType() string { return "V" }

func (v *VoltageSource) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(v.Nodes) != 2 {
		return fmt.Errorf("voltage source %s: requires exactly 2 nodes", v.Name)
	}
	if v.branchIdx <= 0 {
		return fmt.Errorf("voltage source %s: branch row not assigned", v.Name)
	}

	n1, n2 := v.Nodes[0], v.Nodes[1]
	bIdx := v.branchIdx

	// v1 - v2 = V
	if n1 != 0 {
		matrix.AddElement(bIdx, n1, 1)
		matrix.AddElement(n1, bIdx, 1)
	}
	if n2 != 0 {
		matrix.AddElement(bIdx, n2, -1)
		matrix.AddElement(n2, bIdx, -1)
	}

	matrix.AddRHS(bIdx, status.SourceValue(v.Name, v.Value))
	return nil
}

func (v *VoltageSource) BranchIndex() int {
	return v.branchIdx
}

func (v *VoltageSource) SetBranchIndex(idx int) {
	v.branchIdx = idx
}
