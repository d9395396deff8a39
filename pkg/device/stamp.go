package device

import "github.com/edp1096/tiny-spice/pkg/matrix"

// stampConductance adds g between n1 and n2.
func stampConductance(m matrix.DeviceMatrix, n1, n2 int, g float64) {
	if n1 != 0 {
		m.AddElement(n1, n1, g)
		if n2 != 0 {
			m.AddElement(n1, n2, -g)
		}
	}
	if n2 != 0 {
		if n1 != 0 {
			m.AddElement(n2, n1, -g)
		}
		m.AddElement(n2, n2, g)
	}
}

// stampCurrent adds a current i flowing out of node from, through the
// device, into node to.
func stampCurrent(m matrix.DeviceMatrix, from, to int, i float64) {
	if from != 0 {
		m.AddRHS(from, -i)
	}
	if to != 0 {
		m.AddRHS(to, i)
	}
}
