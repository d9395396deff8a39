package newton_test

import (
	"errors"
	"math"
	"testing"

	"github.com/edp1096/tiny-spice/pkg/device"
	"github.com/edp1096/tiny-spice/pkg/newton"
)

func diodeNode() *newton.Equation {
	d := device.NewDiode("D1", 1, 0, 1e-9, 27)
	return newton.NewEquation(newton.Constant{Value: -0.001}, d)
}

func TestSolveDiodeNode(t *testing.T) {
	eq := diodeNode()
	v, err := eq.Solve(0.3)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if f := eq.Eval(v); math.Abs(f) >= newton.CurrentTol {
		t.Fatalf("residual %g at v=%g", f, v)
	}
	// 1 mA through a 1 nA diode sits about Vt*ln(1e6) above zero.
	if math.Abs(v-0.3573) > 1e-3 {
		t.Errorf("v = %g, want about 0.357", v)
	}
}

func TestSolveLinear(t *testing.T) {
	// 2 mA into 1 kOhm.
	eq := newton.NewEquation(newton.Constant{Value: -2e-3}, newton.Linear{Gradient: 1e-3})
	v, err := eq.Solve(0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v-2) > 1e-9 {
		t.Errorf("v = %g, want 2", v)
	}
}

func TestSolveZeroSlope(t *testing.T) {
	eq := newton.NewEquation(newton.Constant{Value: 1})
	v, err := eq.Solve(0)
	if !errors.Is(err, newton.ErrSingularJacobian) {
		t.Fatalf("err = %v, want ErrSingularJacobian", err)
	}
	if math.IsNaN(v) {
		t.Error("returned NaN")
	}

	// The exponential underflows far in reverse bias.
	eq = newton.NewEquation(device.NewDiode("D1", 1, 0, 1e-9, 27))
	if _, err := eq.Solve(-100); !errors.Is(err, newton.ErrSingularJacobian) {
		t.Fatalf("err = %v, want ErrSingularJacobian", err)
	}
}

func TestSolveDiverges(t *testing.T) {
	// From 0.1 V the first step lands hundreds of volts forward.
	v, err := diodeNode().Solve(0.1)
	if err == nil {
		t.Fatalf("converged to %g", v)
	}
	if !errors.Is(err, newton.ErrNoConvergence) || !errors.Is(err, newton.ErrDiverged) {
		t.Errorf("err = %v", err)
	}
	if math.IsNaN(v) {
		t.Error("returned NaN")
	}
}

func TestSolveIterationBound(t *testing.T) {
	eq := diodeNode()
	eq.MaxIter = 1
	if _, err := eq.Solve(0.3); !errors.Is(err, newton.ErrNoConvergence) {
		t.Fatalf("err = %v, want ErrNoConvergence", err)
	}
}

func TestEquationSum(t *testing.T) {
	d := device.NewDiode("D1", 1, 0, 1e-12, 50)
	terms := []newton.Differentiable{newton.Constant{Value: 0.5}, newton.Linear{Gradient: -2}, d}
	eq := newton.NewEquation(terms[0])
	eq.Add(terms[1:]...)

	for _, v := range []float64{-1, 0, 0.25, 0.6} {
		var f, fp float64
		for _, term := range terms {
			f += term.Eval(v)
			fp += term.Slope(v)
		}
		if eq.Eval(v) != f || eq.Slope(v) != fp {
			t.Errorf("v=%g: got (%g, %g), want (%g, %g)", v, eq.Eval(v), eq.Slope(v), f, fp)
		}
		// Stateless terms evaluate the same every time.
		if eq.Eval(v) != eq.Eval(v) || eq.Slope(v) != eq.Slope(v) {
			t.Errorf("v=%g: repeated evaluation differs", v)
		}
	}
}

func TestLinearize(t *testing.T) {
	d := device.NewDiode("D1", 1, 0, 1e-14, 27)
	v := 0.65
	g, ieq := newton.Linearize(d, v)
	if g != d.Slope(v) {
		t.Errorf("g = %g, want %g", g, d.Slope(v))
	}
	if got := g*v + ieq; math.Abs(got-d.Eval(v)) > 1e-12*d.Eval(v) {
		t.Errorf("companion gives %g, diode %g", got, d.Eval(v))
	}

	g, ieq = newton.Linearize(newton.Linear{Gradient: 3}, 7)
	if g != 3 || ieq != 0 {
		t.Errorf("linear companion (%g, %g)", g, ieq)
	}
}
