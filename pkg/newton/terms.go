package newton

// Constant is a fixed current, e.g. an independent source.
type Constant struct {
	Value float64
}

func (c Constant) Eval(float64) float64  { return c.Value }
func (c Constant) Slope(float64) float64 { return 0 }

// Linear is an ohmic current Gradient*v.
type Linear struct {
	Gradient float64
}

func (l Linear) Eval(v float64) float64 { return l.Gradient * v }
func (l Linear) Slope(float64) float64  { return l.Gradient }
