// Package newton solves scalar current-versus-voltage equations by
// Newton-Raphson iteration.
//
// An Equation is a sum of Differentiable terms, typically every current
// converging on one node written as a function of that node's voltage. Its
// zero is the voltage at which Kirchhoff's current law holds.
package newton

import (
	"errors"
	"fmt"
	"math"
)

const (
	MaxIter    = 100
	VoltageTol = 1e-9  // V
	CurrentTol = 1e-12 // A
)

var (
	// ErrSingularJacobian is returned when the slope is exactly zero at an iterate.
	ErrSingularJacobian = errors.New("newton: zero slope (singular jacobian)")
	// ErrNoConvergence is returned when the iteration bound is exhausted.
	ErrNoConvergence = errors.New("newton: failed to converge")
	// ErrDiverged is returned when an iterate leaves the finite numbers.
	ErrDiverged = fmt.Errorf("%w: iterate is not finite", ErrNoConvergence)
)

// Differentiable is a current as a function of voltage together with its
// derivative (a conductance).
type Differentiable interface {
	Eval(v float64) float64
	Slope(v float64) float64
}

// Equation is the sum of its terms. Zero tolerances and bounds select the
// package defaults.
type Equation struct {
	Terms      []Differentiable
	MaxIter    int
	VoltageTol float64
	CurrentTol float64
}

var _ Differentiable = (*Equation)(nil)

func NewEquation(terms ...Differentiable) *Equation {
	return &Equation{Terms: terms}
}

func (e *Equation) Add(terms ...Differentiable) {
	e.Terms = append(e.Terms, terms...)
}

func (e *Equation) Eval(v float64) float64 {
	sum := 0.0
	for _, term := range e.Terms {
		sum += term.Eval(v)
	}
	return sum
}

func (e *Equation) Slope(v float64) float64 {
	sum := 0.0
	for _, term := range e.Terms {
		sum += term.Slope(v)
	}
	return sum
}

// Solve runs Newton-Raphson from v0 and returns the voltage where the sum of
// the terms vanishes.
func (e *Equation) Solve(v0 float64) (float64, error) {
	maxIter, vtol, itol := e.limits()

	v := v0
	for iter := 0; iter < maxIter; iter++ {
		f := e.Eval(v)
		fp := e.Slope(v)
		if !isFinite(f) || !isFinite(fp) {
			return 0, fmt.Errorf("%w at v=%g (iteration %d)", ErrDiverged, v, iter)
		}
		if fp == 0 {
			return 0, fmt.Errorf("%w at v=%g (iteration %d)", ErrSingularJacobian, v, iter)
		}

		next := v - f/fp
		if !isFinite(next) {
			return 0, fmt.Errorf("%w after v=%g (iteration %d)", ErrDiverged, v, iter)
		}
		if math.Abs(next-v) < vtol || math.Abs(e.Eval(next)) < itol {
			return next, nil
		}
		v = next
	}

	return 0, fmt.Errorf("%w in %d iterations", ErrNoConvergence, maxIter)
}

func (e *Equation) limits() (int, float64, float64) {
	maxIter, vtol, itol := e.MaxIter, e.VoltageTol, e.CurrentTol
	if maxIter <= 0 {
		maxIter = MaxIter
	}
	if vtol <= 0 {
		vtol = VoltageTol
	}
	if itol <= 0 {
		itol = CurrentTol
	}
	return maxIter, vtol, itol
}

// Linearize returns the companion of d at v: the conductance g and the
// offset current ieq such that d(x) ~ g*x + ieq near v.
func Linearize(d Differentiable, v float64) (g, ieq float64) {
	g = d.Slope(v)
	ieq = d.Eval(v) - g*v
	return g, ieq
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
