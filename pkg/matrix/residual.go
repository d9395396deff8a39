package matrix

import "math"

// Residual accumulates A*x - b for a fixed x while devices stamp. Stamped at
// the point x itself, node rows hold the net current leaving each node and
// branch rows the voltage-constraint error.
type Residual struct {
	x     []float64
	r     []float64
	scale []float64 // largest single contribution per row
}

func NewResidual(x []float64) *Residual {
	return &Residual{
		x:     x,
		r:     make([]float64, len(x)),
		scale: make([]float64, len(x)),
	}
}

func (r *Residual) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i >= len(r.r) || j >= len(r.x) {
		return
	}
	term := value * r.x[j]
	r.r[i] += term
	r.scale[i] = max(r.scale[i], math.Abs(term))
}

func (r *Residual) AddRHS(i int, value float64) {
	if i <= 0 || i >= len(r.r) {
		return
	}
	r.r[i] -= value
	r.scale[i] = max(r.scale[i], math.Abs(value))
}

func (r *Residual) Values() []float64 {
	return r.r
}

// MaxAbs returns the largest |residual| over rows first..last inclusive.
// NaN entries yield NaN.
func (r *Residual) MaxAbs(first, last int) float64 {
	worst := 0.0
	for i := max(first, 1); i <= last && i < len(r.r); i++ {
		v := math.Abs(r.r[i])
		if math.IsNaN(v) {
			return v
		}
		worst = max(worst, v)
	}
	return worst
}

// Within reports whether every row first..last satisfies
// |r| <= abstol + reltol*(largest contribution to that row).
func (r *Residual) Within(first, last int, abstol, reltol float64) bool {
	for i := max(first, 1); i <= last && i < len(r.r); i++ {
		if !(math.Abs(r.r[i]) <= abstol+reltol*r.scale[i]) {
			return false
		}
	}
	return true
}
