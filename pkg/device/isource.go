package device

import (
	"fmt"
	"math"

	"github.com/edp1096/tiny-spice/pkg/matrix"
)

// CurrentSourceSine drives i(t) = Offset + Amplitude*sin(2*pi*Freq*t)
// through itself from node p to node n, i.e. out of p and into n.
type CurrentSourceSine struct {
	BaseDevice
	Offset    float64 // A
	Amplitude float64 // A
	Freq      float64 // Hz
}

func NewCurrentSourceSine(name string, p, n int, offset, amplitude, freq float64) *CurrentSourceSine {
	return &CurrentSourceSine{
		BaseDevice: newBaseDevice(name, offset, p, n),
		Offset:     offset,
		Amplitude:  amplitude,
		Freq:       freq,
	}
}

// NewDCCurrentSource is a sine source with no amplitude.
func NewDCCurrentSource(name string, p, n int, value float64) *CurrentSourceSine {
	return NewCurrentSourceSine(name, p, n, value, 0, 0)
}

func (i *CurrentSourceSine) GetType() string { return "I" }

func (i *CurrentSourceSine) Current(t float64) float64 {
	if i.Amplitude == 0 {
		return i.Offset
	}
	return i.Offset + i.Amplitude*math.Sin(2.0*math.Pi*i.Freq*t)
}

func (i *CurrentSourceSine) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(i.Nodes) != 2 {
		return fmt.Errorf("current source %s: requires exactly 2 nodes", i.Name)
	}

	current := status.SourceValue(i.Name, i.Current(status.Time))
	stampCurrent(matrix, i.Nodes[0], i.Nodes[1], current)
	return nil
}
