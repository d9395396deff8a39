package circuit

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/edp1096/tiny-spice/internal/consts"
	"github.com/edp1096/tiny-spice/pkg/device"
	"github.com/edp1096/tiny-spice/pkg/matrix"
	"github.com/edp1096/tiny-spice/pkg/util"
)

var (
	// ErrTopology reports a circuit whose connectivity cannot be solved.
	ErrTopology = errors.New("circuit: invalid topology")
	// ErrInvalidParameter reports a device value outside its physical range.
	ErrInvalidParameter = errors.New("circuit: invalid device parameter")
)

// Circuit is an ordered set of devices on integer nodes, node 0 being
// ground. Setup fixes the layout of the MNA system; after that the circuit
// is only read, so several analyses may share it. A device belongs to the
// first circuit that sets it up.
type Circuit struct {
	mu sync.Mutex

	name             string
	devices          []device.Device
	ready            bool
	numNodes         int
	numBranches      int
	nonlinearDevices []device.NonLinear
	timeDependent    []device.TimeDependent
	voltageSources   []*device.VoltageSource
}

func New(name string) *Circuit {
	return &Circuit{
		name:    name,
		devices: make([]device.Device, 0),
	}
}

func (c *Circuit) Name() string {
	return c.name
}

// Add appends devices. The layout is recomputed by the next Setup.
func (c *Circuit) Add(devices ...device.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.devices = append(c.devices, devices...)
	c.ready = false
}

func (c *Circuit) Devices() []device.Device {
	return c.devices
}

// Setup validates the circuit, assigns device indices and branch rows and
// sorts devices by capability. It is safe to call repeatedly.
func (c *Circuit) Setup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}
	if len(c.devices) == 0 {
		return fmt.Errorf("%w: circuit %q has no devices", ErrTopology, c.name)
	}

	maxNode := 0
	names := make(map[string]bool, len(c.devices))
	for _, dev := range c.devices {
		if names[dev.GetName()] {
			return fmt.Errorf("%w: duplicate device name %s", ErrTopology, dev.GetName())
		}
		names[dev.GetName()] = true

		if !dev.Attach(c) {
			return fmt.Errorf("%w: device %s already belongs to another circuit", ErrTopology, dev.GetName())
		}

		nodes := dev.GetNodes()
		if len(nodes) != 2 {
			return fmt.Errorf("%w: device %s has %d terminals, want 2", ErrTopology, dev.GetName(), len(nodes))
		}
		for _, n := range nodes {
			if n < 0 {
				return fmt.Errorf("%w: device %s uses negative node %d", ErrTopology, dev.GetName(), n)
			}
			maxNode = max(maxNode, n)
		}

		if err := validateDevice(dev); err != nil {
			return err
		}
	}

	connected := make([]bool, maxNode+1)
	for _, dev := range c.devices {
		for _, n := range dev.GetNodes() {
			connected[n] = true
		}
	}
	for n := 1; n <= maxNode; n++ {
		if !connected[n] {
			return fmt.Errorf("%w: node %d is not connected to any device", ErrTopology, n)
		}
	}

	c.numNodes = maxNode + 1
	c.nonlinearDevices = c.nonlinearDevices[:0]
	c.timeDependent = c.timeDependent[:0]
	c.voltageSources = c.voltageSources[:0]

	// Branch rows follow the node rows.
	branchIdx := maxNode
	for i, dev := range c.devices {
		dev.SetIndex(i)

		switch d := dev.(type) {
		case *device.VoltageSource:
			branchIdx++
			d.SetBranchIndex(branchIdx)
			c.voltageSources = append(c.voltageSources, d)
		}
		if nl, ok := dev.(device.NonLinear); ok {
			c.nonlinearDevices = append(c.nonlinearDevices, nl)
		}
		if td, ok := dev.(device.TimeDependent); ok {
			c.timeDependent = append(c.timeDependent, td)
		}
	}
	c.numBranches = len(c.voltageSources)

	if c.MatrixSize() == 0 {
		return fmt.Errorf("%w: circuit %q has no unknowns", ErrTopology, c.name)
	}

	c.ready = true
	return nil
}

func validateDevice(dev device.Device) error {
	name := dev.GetName()
	nodes := dev.GetNodes()
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: "+format, append([]any{ErrInvalidParameter, name}, args...)...)
	}

	if !util.IsFinite([]float64{dev.GetValue()}) {
		return invalid("value %g is not finite", dev.GetValue())
	}

	switch d := dev.(type) {
	case *device.Resistor:
		if d.Value == 0 {
			return invalid("zero resistance")
		}
	case *device.Capacitor:
		if d.Value <= 0 {
			return invalid("capacitance %g must be positive", d.Value)
		}
		if !util.IsFinite([]float64{d.IC}) {
			return invalid("initial condition %g is not finite", d.IC)
		}
	case *device.Diode:
		if d.Is <= 0 {
			return invalid("saturation current %g must be positive", d.Is)
		}
		if math.IsNaN(d.TdegC) || d.TdegC <= -consts.KELVIN {
			return invalid("temperature %g degC is below absolute zero", d.TdegC)
		}
	case *device.VoltageSource:
		if nodes[0] == nodes[1] {
			return fmt.Errorf("%w: voltage source %s is shorted onto node %d", ErrTopology, name, nodes[0])
		}
	case *device.CurrentSourceSine:
		if !util.IsFinite([]float64{d.Offset, d.Amplitude, d.Freq}) {
			return invalid("source parameters are not finite")
		}
		if d.Freq < 0 {
			return invalid("negative frequency %g", d.Freq)
		}
	}

	return nil
}

// Stamp stamps every device into m at the given status.
func (c *Circuit) Stamp(m matrix.DeviceMatrix, status *device.CircuitStatus) error {
	var err error

	for _, dev := range c.devices {
		err = dev.Stamp(m, status)
		if err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
	}
	return nil
}

// NumNodes counts ground.
func (c *Circuit) NumNodes() int {
	return c.numNodes
}

func (c *Circuit) NumBranches() int {
	return c.numBranches
}

// MatrixSize is the number of unknowns: node voltages without ground plus
// branch currents.
func (c *Circuit) MatrixSize() int {
	if c.numNodes == 0 {
		return c.numBranches
	}
	return c.numNodes - 1 + c.numBranches
}

func (c *Circuit) NonlinearDevices() []device.NonLinear {
	return c.nonlinearDevices
}

func (c *Circuit) TimeDependentDevices() []device.TimeDependent {
	return c.timeDependent
}

func (c *Circuit) VoltageSources() []*device.VoltageSource {
	return c.voltageSources
}

// SolutionNames labels every row of a 1-based solution vector; entry 0 is
// the ground node.
func (c *Circuit) SolutionNames() []string {
	names := make([]string, c.MatrixSize()+1)
	for n := 0; n < c.numNodes; n++ {
		names[n] = util.FormatNodeName(n)
	}
	for _, v := range c.voltageSources {
		names[v.BranchIndex()] = util.FormatBranchName(v.GetName())
	}
	return names
}
