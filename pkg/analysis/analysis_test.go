package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/edp1096/tiny-spice/internal/consts"
	"github.com/edp1096/tiny-spice/pkg/circuit"
	"github.com/edp1096/tiny-spice/pkg/device"
	"github.com/edp1096/tiny-spice/pkg/matrix"
	"github.com/edp1096/tiny-spice/pkg/newton"
)

var kinds = []matrix.Kind{matrix.KindSparse, matrix.KindDense}

func newEngine(t *testing.T, kind matrix.Kind, edit func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Solver = kind
	if edit != nil {
		edit(&cfg)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// diodeString is 5 V on node 1, a forward diode 1->2 and a reverse diode
// from ground to node 2.
func diodeString() *circuit.Circuit {
	return diodeStringWith(1e-14)
}

func diodeStringWith(is float64) *circuit.Circuit {
	ckt := circuit.New("diode string")
	ckt.Add(
		device.NewVoltageSource("V1", 1, 0, 5),
		device.NewDiode("D1", 1, 2, is, consts.ROOMTEMP),
		device.NewDiode("D2", 0, 2, is, consts.ROOMTEMP),
	)
	return ckt
}

func divider() *circuit.Circuit {
	ckt := circuit.New("divider")
	ckt.Add(
		device.NewVoltageSource("V1", 1, 0, 5),
		device.NewResistor("R1", 1, 2, 1e3),
		device.NewResistor("R2", 2, 0, 2e3),
	)
	return ckt
}

func rc(ic float64) *circuit.Circuit {
	ckt := circuit.New("rc")
	ckt.Add(
		device.NewVoltageSource("V1", 1, 0, 1),
		device.NewResistor("R1", 1, 2, 1e3),
		device.NewCapacitorIC("C1", 2, 0, 1e-6, ic),
	)
	return ckt
}

func TestOperatingPointDiodeString(t *testing.T) {
	for _, is := range []float64{1e-14, 1e-9} {
		for _, kind := range kinds {
			t.Run(fmt.Sprintf("%s/is=%g", kind, is), func(t *testing.T) {
				res, err := newEngine(t, kind, nil).DCOperatingPoint(diodeStringWith(is))
				if err != nil {
					t.Fatal(err)
				}
				if math.Abs(res.Voltages[1]-5) > 1e-9 {
					t.Errorf("V(1) = %g, want 5", res.Voltages[1])
				}
				if math.Abs(res.Voltages[2]-5) > 0.05 {
					t.Errorf("V(2) = %g, want near 5", res.Voltages[2])
				}
				// Equal junction currents put node 2 one Vt*ln2 below the source.
				vt := device.NewDefaultDiode("D", 1, 0).Vt()
				if want := 5 - vt*math.Ln2; math.Abs(res.Voltages[2]-want) > 1e-4 {
					t.Errorf("V(2) = %g, want %g", res.Voltages[2], want)
				}
				if res.Voltages[0] != 0 {
					t.Errorf("ground = %g", res.Voltages[0])
				}
				if res.Iterations < 2 || res.Iterations >= DefaultConfig().MaxIter {
					t.Errorf("iterations = %d", res.Iterations)
				}
			})
		}
	}
}

func TestOperatingPointJunctionOverflow(t *testing.T) {
	ckt := circuit.New("overdriven diode")
	ckt.Add(
		device.NewVoltageSource("V1", 1, 0, 20),
		device.NewResistor("R1", 1, 2, 1e3),
		device.NewDefaultDiode("D1", 2, 0),
	)

	_, err := newEngine(t, matrix.KindSparse, nil).DCOperatingPoint(ckt)
	if !errors.Is(err, newton.ErrDiverged) {
		t.Fatalf("err = %v, want ErrDiverged", err)
	}
	var cerr *ConvergenceError
	if !errors.As(err, &cerr) || cerr.Analysis != "op" || cerr.Iterations > 2 {
		t.Errorf("err = %#v", err)
	}
}

func TestOperatingPointDivider(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			res, err := newEngine(t, kind, nil).DCOperatingPoint(divider())
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(res.Voltages[2]-10.0/3.0) > 1e-9 {
				t.Errorf("V(2) = %g", res.Voltages[2])
			}
			if math.Abs(res.Currents["V1"]-5.0/3000) > 1e-12 {
				t.Errorf("I(V1) = %g", res.Currents["V1"])
			}
			if res.Iterations != 1 {
				t.Errorf("linear circuit took %d solves", res.Iterations)
			}
		})
	}
}

func TestOperatingPointCapacitorOpen(t *testing.T) {
	ckt := circuit.New("open")
	ckt.Add(
		device.NewVoltageSource("V1", 1, 0, 5),
		device.NewResistor("R1", 1, 2, 1e3),
		device.NewCapacitor("C1", 2, 0, 1e-6),
	)
	res, err := newEngine(t, matrix.KindSparse, nil).DCOperatingPoint(ckt)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Voltages[2]-5) > 1e-9 || math.Abs(res.Currents["V1"]) > 1e-15 {
		t.Errorf("V(2) = %g, I(V1) = %g", res.Voltages[2], res.Currents["V1"])
	}
}

func TestOperatingPointSingular(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			ckt := circuit.New("floating")
			ckt.Add(
				device.NewCurrentSourceSine("I1", 0, 1, 1e-3, 0, 0),
				device.NewCapacitor("C1", 1, 0, 1e-6),
			)
			_, err := newEngine(t, kind, nil).DCOperatingPoint(ckt)
			if !errors.Is(err, matrix.ErrSingularMatrix) {
				t.Fatalf("err = %v, want ErrSingularMatrix", err)
			}
			var ce *ConvergenceError
			if !errors.As(err, &ce) || ce.Analysis != "op" {
				t.Errorf("err = %#v", err)
			}
		})
	}
}

func TestOperatingPointIterationBound(t *testing.T) {
	e := newEngine(t, matrix.KindSparse, func(c *Config) { c.MaxIter = 1 })
	_, err := e.DCOperatingPoint(diodeString())
	if !errors.Is(err, newton.ErrNoConvergence) {
		t.Fatalf("err = %v, want ErrNoConvergence", err)
	}
}

func TestOperatingPointTopologyError(t *testing.T) {
	ckt := circuit.New("gap")
	ckt.Add(device.NewResistor("R1", 2, 0, 1))
	_, err := newEngine(t, matrix.KindSparse, nil).DCOperatingPoint(ckt)
	if !errors.Is(err, circuit.ErrTopology) {
		t.Fatalf("err = %v, want ErrTopology", err)
	}
}

func TestTransientSineSource(t *testing.T) {
	for _, freq := range []float64{10, 1e3} {
		ckt := circuit.New("sine")
		src := device.NewCurrentSourceSine("I1", 0, 1, 3.0, 1.0, freq)
		ckt.Add(src, device.NewResistor("R1", 1, 0, 10))

		e := newEngine(t, matrix.KindSparse, func(c *Config) {
			c.TimeStep = 1 / (freq * 64)
			c.Steps = 128
		})
		res, err := e.TransientAnalysis(ckt)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Points) != 128 {
			t.Fatalf("%d points", len(res.Points))
		}
		for k, p := range res.Points {
			if want := float64(k+1) * e.Config().TimeStep; p.Time != want {
				t.Fatalf("point %d at t=%g, want %g", k, p.Time, want)
			}
			if want := src.Current(p.Time) * 10; math.Abs(p.Voltages[1]-want) > 1e-9 {
				t.Fatalf("f=%g t=%g: V(1) = %g, want %g", freq, p.Time, p.Voltages[1], want)
			}
		}
	}
}

func TestTransientRC(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			const dt, r, c = 1e-4, 1e3, 1e-6
			e := newEngine(t, kind, func(cfg *Config) {
				cfg.TimeStep = dt
				cfg.Steps = 50
			})
			res, err := e.TransientAnalysis(rc(0))
			if err != nil {
				t.Fatal(err)
			}

			v := 0.0
			for _, p := range res.Points {
				v = (v*c/dt + 1/r) / (1/r + c/dt)
				if math.Abs(p.Voltages[2]-v) > 1e-9 {
					t.Fatalf("t=%g: V(2) = %g, want %g", p.Time, p.Voltages[2], v)
				}
			}
			// Five time constants.
			if v := res.Points[49].Voltages[2]; v < 0.98 || v > 1 {
				t.Errorf("final V(2) = %g", v)
			}
			if len(res.Results["TIME"]) != 50 || len(res.Results["V(2)"]) != 50 {
				t.Errorf("result series: %d times", len(res.Results["TIME"]))
			}
		})
	}
}

func TestTransientInitialCondition(t *testing.T) {
	e := newEngine(t, matrix.KindDense, func(cfg *Config) {
		cfg.TimeStep = 1e-4
		cfg.Steps = 1
	})
	res, err := e.TransientAnalysis(rc(1))
	if err != nil {
		t.Fatal(err)
	}
	// Already at the source voltage, nothing moves.
	if v := res.Points[0].Voltages[2]; math.Abs(v-1) > 1e-12 {
		t.Errorf("V(2) = %g, want 1", v)
	}
}

func TestTransientFromOperatingPoint(t *testing.T) {
	e := newEngine(t, matrix.KindSparse, func(cfg *Config) {
		cfg.TimeStep = 1e-4
		cfg.Steps = 10
		cfg.UseOperatingPoint = true
	})
	res, err := e.TransientAnalysis(rc(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Points) != 11 || res.Points[0].Time != 0 {
		t.Fatalf("%d points, first at %g", len(res.Points), res.Points[0].Time)
	}
	for _, p := range res.Points {
		if math.Abs(p.Voltages[2]-1) > 1e-9 {
			t.Errorf("t=%g: V(2) = %g, want 1", p.Time, p.Voltages[2])
		}
	}
}

func TestTransientStartTime(t *testing.T) {
	e := newEngine(t, matrix.KindSparse, func(cfg *Config) {
		cfg.TimeStep = 1e-3
		cfg.Steps = 10
		cfg.StartTime = 4.5e-3
	})
	res, err := e.TransientAnalysis(rc(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Points) != 6 || res.Points[0].Time < 4.5e-3 {
		t.Errorf("%d points from t=%g", len(res.Points), res.Points[0].Time)
	}
}

func TestTransientDiodeRectifier(t *testing.T) {
	ckt := circuit.New("rectifier")
	ckt.Add(
		device.NewCurrentSourceSine("I1", 0, 1, 0, 1e-3, 50),
		device.NewResistor("R1", 1, 0, 10e3),
		device.NewDefaultDiode("D1", 1, 2),
		device.NewResistor("RL", 2, 0, 1e3),
		device.NewCapacitor("C1", 2, 0, 1e-6),
	)
	e := newEngine(t, matrix.KindSparse, func(cfg *Config) {
		cfg.TimeStep = 1e-4
		cfg.Steps = 400
	})
	res, err := e.TransientAnalysis(ckt)
	if err != nil {
		t.Fatal(err)
	}
	peakIn, peakOut := 0.0, 0.0
	for _, p := range res.Points {
		peakIn = max(peakIn, p.Voltages[1])
		peakOut = max(peakOut, p.Voltages[2])
		// The diode blocks the negative half cycle.
		if p.Voltages[2] < -1e-9 {
			t.Fatalf("t=%g: V(2) = %g", p.Time, p.Voltages[2])
		}
		if p.Voltages[2] > peakIn {
			t.Fatalf("t=%g: output %g above the input peak %g", p.Time, p.Voltages[2], peakIn)
		}
	}
	if peakOut < 0.1 {
		t.Errorf("output peak %g", peakOut)
	}
}

func TestTransientFailureReportsStep(t *testing.T) {
	e := newEngine(t, matrix.KindSparse, func(cfg *Config) { cfg.MaxIter = 1 })
	_, err := e.TransientAnalysis(diodeString())

	var ce *ConvergenceError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v", err)
	}
	if ce.Analysis != "tran" || ce.Step != 1 || ce.Time != e.Config().TimeStep {
		t.Errorf("failure at %s step %d t=%g", ce.Analysis, ce.Step, ce.Time)
	}
	if !errors.Is(err, newton.ErrNoConvergence) {
		t.Errorf("cause = %v", ce.Err)
	}
	if !strings.Contains(err.Error(), "step 1") {
		t.Errorf("message %q", err.Error())
	}
}

func TestDCSweep(t *testing.T) {
	e := newEngine(t, matrix.KindSparse, nil)
	ckt := divider()
	res, err := e.DCSweep(ckt, Sweep{Source: "V1", Start: 0, Stop: 5, Step: 1})
	if err != nil {
		t.Fatal(err)
	}

	sweep, v2 := res.Results["SWEEP1"], res.Results["V(2)"]
	if len(sweep) != 6 || len(v2) != 6 {
		t.Fatalf("%d sweep points", len(sweep))
	}
	for i := range sweep {
		if math.Abs(v2[i]-sweep[i]*2/3) > 1e-9 {
			t.Errorf("V1=%g: V(2) = %g", sweep[i], v2[i])
		}
	}

	// The source keeps its own value.
	op, err := e.DCOperatingPoint(ckt)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(op.Voltages[1]-5) > 1e-12 {
		t.Errorf("V(1) = %g after sweep", op.Voltages[1])
	}
}

func TestDCSweepNested(t *testing.T) {
	ckt := circuit.New("two sources")
	ckt.Add(
		device.NewVoltageSource("V1", 1, 0, 0),
		device.NewResistor("R1", 1, 2, 1e3),
		device.NewResistor("R2", 2, 0, 1e3),
		device.NewDCCurrentSource("I1", 0, 2, 0),
	)
	res, err := newEngine(t, matrix.KindDense, nil).DCSweep(ckt,
		Sweep{Source: "V1", Start: 0, Stop: 2, Step: 1},
		Sweep{Source: "I1", Start: 0, Stop: 1e-3, Step: 0.5e-3},
	)
	if err != nil {
		t.Fatal(err)
	}
	v2 := res.Results["V(2)"]
	if len(v2) != 9 {
		t.Fatalf("%d points", len(v2))
	}
	for i := range v2 {
		v, i1 := res.Results["SWEEP1"][i], res.Results["SWEEP2"][i]
		if want := v/2 + i1*500; math.Abs(v2[i]-want) > 1e-9 {
			t.Errorf("V1=%g I1=%g: V(2) = %g, want %g", v, i1, v2[i], want)
		}
	}
}

func TestDCSweepErrors(t *testing.T) {
	e := newEngine(t, matrix.KindSparse, nil)
	if _, err := e.DCSweep(divider(), Sweep{Source: "R1", Start: 0, Stop: 1, Step: 1}); err == nil {
		t.Error("swept a resistor")
	}
	if _, err := e.DCSweep(divider(), Sweep{Source: "V1", Start: 0, Stop: 1, Step: -1}); err == nil {
		t.Error("accepted a sweep that never ends")
	}
	if _, err := e.DCSweep(divider()); err == nil {
		t.Error("accepted an empty sweep")
	}
}

func TestConcurrentEngines(t *testing.T) {
	ckt := diodeString()
	var wg sync.WaitGroup
	results := make([]*OPResult, 4)
	errs := make([]error, 4)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := DefaultConfig()
			cfg.Solver = kinds[i%2]
			e, err := NewEngine(cfg)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = e.DCOperatingPoint(ckt)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("engine %d: %v", i, errs[i])
		}
		if math.Abs(results[i].Voltages[2]-results[0].Voltages[2]) > 1e-6 {
			t.Errorf("engine %d: V(2) = %g, engine 0: %g", i, results[i].Voltages[2], results[0].Voltages[2])
		}
	}
}

func TestCheckConvergence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reltol = 1e-3
	cfg.VoltageTol = 1e-6
	a := NewBaseAnalysis(cfg)

	old := []float64{0, 5, 1e-9}
	tests := []struct {
		name string
		sol  []float64
		want bool
	}{
		{"unchanged", []float64{0, 5, 1e-9}, true},
		{"within reltol", []float64{0, 5.004, 1e-9}, true},
		{"beyond reltol", []float64{0, 5.01, 1e-9}, false},
		{"within abstol near zero", []float64{0, 5, 5e-7}, true},
		{"beyond abstol near zero", []float64{0, 5, 2e-6}, false},
		{"ground row ignored", []float64{7, 5, 1e-9}, true},
		{"length mismatch", []float64{0, 5}, false},
	}
	for _, tt := range tests {
		if got := a.CheckConvergence(old, tt.sol); got != tt.want {
			t.Errorf("%s: CheckConvergence = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	for name, edit := range map[string]func(*Config){
		"maxiter":  func(c *Config) { c.MaxIter = 0 },
		"timestep": func(c *Config) { c.TimeStep = 0 },
		"steps":    func(c *Config) { c.Steps = -1 },
		"vtol":     func(c *Config) { c.VoltageTol = 0 },
		"gmin":     func(c *Config) { c.Gmin = -1 },
		"solver":   func(c *Config) { c.Solver = "qr" },
	} {
		cfg := DefaultConfig()
		edit(&cfg)
		if _, err := NewEngine(cfg); err == nil {
			t.Errorf("%s: invalid config accepted", name)
		}
	}
	if got := DefaultConfig().StopTime(); math.Abs(got-0.1) > 1e-15 {
		t.Errorf("StopTime = %g", got)
	}
}

func TestVerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine(t, matrix.KindSparse, func(c *Config) {
		c.Logger = log.New(&buf, "", 0)
		c.Verbose = true
	})
	if _, err := e.DCOperatingPoint(diodeString()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Circuit Equations", "op t=", "converged in"} {
		if !strings.Contains(out, want) {
			t.Errorf("log lacks %q", want)
		}
	}
}

func TestOperatingPointAnalyzer(t *testing.T) {
	var a Analysis = NewOP(DefaultConfig())
	if err := a.Setup(divider()); err != nil {
		t.Fatal(err)
	}
	if err := a.Execute(); err != nil {
		t.Fatal(err)
	}
	results := a.GetResults()
	if v := results["V(2)"]; len(v) != 1 || math.Abs(v[0]-10.0/3.0) > 1e-9 {
		t.Errorf("V(2) = %v", v)
	}
	if i := results["I(V1)"]; len(i) != 1 || i[0] <= 0 {
		t.Errorf("I(V1) = %v", i)
	}
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	Banner(&buf)
	if !strings.HasPrefix(buf.String(), "tiny-spice") {
		t.Errorf("banner %q", buf.String())
	}
}
