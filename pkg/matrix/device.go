package matrix

// DeviceMatrix is the stamping target seen by devices. Indices are 1-based;
// row or column 0 is ground and is never stored.
type DeviceMatrix interface {
	AddElement(i, j int, value float64)
	AddRHS(i int, value float64)
}

type fanout []DeviceMatrix

// Fanout returns a DeviceMatrix that forwards every stamp to all targets.
func Fanout(targets ...DeviceMatrix) DeviceMatrix {
	return fanout(targets)
}

func (f fanout) AddElement(i, j int, value float64) {
	for _, m := range f {
		m.AddElement(i, j, value)
	}
}

func (f fanout) AddRHS(i int, value float64) {
	for _, m := range f {
		m.AddRHS(i, value)
	}
}
