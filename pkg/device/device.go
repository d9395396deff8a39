package device

import (
	"github.com/edp1096/tiny-spice/pkg/matrix"
	"github.com/edp1096/tiny-spice/pkg/newton"
)

type Device interface {
	GetName() string
	GetType() string
	GetNodes() []int
	GetValue() float64
	GetIndex() int
	SetIndex(idx int)
	Attach(owner any) bool
	Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error
}

type BaseDevice struct {
	Name  string
	Nodes []int
	Value float64
	Index int // position in the owning circuit, keys per-run state
	owner any
}

// NonLinear devices are stamped through their companion at the present
// Newton estimate.
type NonLinear interface {
	Device
	newton.Differentiable
}

// TimeDependent devices carry one value of history from one accepted time
// step to the next. The analysis owns that value; the device only says how
// to start it and how to advance it.
type TimeDependent interface {
	Device
	InitialState() float64
	NextState(voltages []float64) float64
}

// BranchDevice adds an MNA branch-current unknown.
type BranchDevice interface {
	Device
	BranchIndex() int
	SetBranchIndex(idx int)
}

type AnalysisMode int

const (
	OperatingPointAnalysis AnalysisMode = iota
	TransientAnalysis
)

func (m AnalysisMode) String() string {
	switch m {
	case OperatingPointAnalysis:
		return "op"
	case TransientAnalysis:
		return "tran"
	default:
		return "unknown"
	}
}

type CircuitStatus struct {
	Time     float64
	TimeStep float64
	Gmin     float64
	Mode     AnalysisMode
	Voltages []float64 // present Newton estimate, 1-based, [0] is ground
	History  []float64 // TimeDependent state by device index

	// Overrides replaces the value of named independent sources, e.g. during
	// a DC sweep. The devices themselves are never modified.
	Overrides map[string]float64
}

// NodeVoltage returns the present estimate for node n; ground and nodes
// outside the estimate read 0.
func (s *CircuitStatus) NodeVoltage(n int) float64 {
	if n <= 0 || n >= len(s.Voltages) {
		return 0
	}
	return s.Voltages[n]
}

// State returns the history entry for a device index, 0 when absent.
func (s *CircuitStatus) State(idx int) float64 {
	if idx < 0 || idx >= len(s.History) {
		return 0
	}
	return s.History[idx]
}

// SourceValue returns the override for the named source, or def.
func (s *CircuitStatus) SourceValue(name string, def float64) float64 {
	if v, ok := s.Overrides[name]; ok {
		return v
	}
	return def
}

func (d *BaseDevice) GetName() string {
	return d.Name
}

func (d *BaseDevice) GetNodes() []int {
	return d.Nodes
}

func (d *BaseDevice) GetValue() float64 {
	return d.Value
}

func (d *BaseDevice) GetIndex() int {
	return d.Index
}

func (d *BaseDevice) SetIndex(idx int) {
	d.Index = idx
}

// Attach binds the device to owner. Layout is stored on the device itself,
// so a device belongs to at most one circuit; Attach fails for any other.
func (d *BaseDevice) Attach(owner any) bool {
	if d.owner != nil && d.owner != owner {
		return false
	}
	d.owner = owner
	return true
}

func newBaseDevice(name string, value float64, nodes ...int) BaseDevice {
	return BaseDevice{
		Name:  name,
		Nodes: nodes,
		Value: value,
	}
}

// branchVoltage returns v(nodes[0]) - v(nodes[1]) from a 1-based solution.
func branchVoltage(nodes []int, voltages []float64) float64 {
	var v1, v2 float64
	if n := nodes[0]; n > 0 && n < len(voltages) {
		v1 = voltages[n]
	}
	if n := nodes[1]; n > 0 && n < len(voltages) {
		v2 = voltages[n]
	}
	return v1 - v2
}
