package netlist

import (
	"fmt"
	"math"
	"strings"

	"github.com/edp1096/tiny-spice/pkg/analysis"
	"github.com/edp1096/tiny-spice/pkg/circuit"
	"github.com/edp1096/tiny-spice/pkg/device"
	"github.com/edp1096/tiny-spice/pkg/matrix"
)

// Build creates the circuit described by the netlist. Topology checks are
// left to circuit.Setup.
func (n *NetlistData) Build() (*circuit.Circuit, error) {
	ckt := circuit.New(n.Title)

	for _, elem := range n.Elements {
		dev, err := n.CreateDevice(elem)
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", elem.Name, err)
		}
		ckt.Add(dev)
	}

	return ckt, nil
}

func (n *NetlistData) CreateDevice(elem Element) (device.Device, error) {
	a, b := elem.Nodes[0], elem.Nodes[1]

	switch elem.Type {
	case "R":
		return device.NewResistor(elem.Name, a, b, elem.Value), nil

	case "C":
		c := device.NewCapacitor(elem.Name, a, b, elem.Value)
		if ic, ok := elem.Params["ic"]; ok {
			v, err := ParseValue(ic)
			if err != nil {
				return nil, fmt.Errorf("invalid IC: %w", err)
			}
			c.IC = v
		}
		return c, nil

	case "D":
		is := 1e-14
		if modelName, ok := elem.Params["model"]; ok {
			model, exists := n.Models[modelName]
			if !exists {
				return nil, fmt.Errorf("undefined model %s", modelName)
			}
			is = model.Params["is"]
		}
		return device.NewDiode(elem.Name, a, b, is, n.TempC), nil

	case "V":
		return device.NewVoltageSource(elem.Name, a, b, elem.Value), nil

	case "I":
		if elem.Params["type"] == "sin" {
			offset, amplitude, freq, err := parseSinParams(elem.Params["sin"])
			if err != nil {
				return nil, err
			}
			return device.NewCurrentSourceSine(elem.Name, a, b, offset, amplitude, freq), nil
		}
		return device.NewDCCurrentSource(elem.Name, a, b, elem.Value), nil
	}

	return nil, fmt.Errorf("unsupported device type: %s", elem.Type)
}

// Config applies .tran timing and .options on top of base.
func (n *NetlistData) Config(base analysis.Config) (analysis.Config, error) {
	cfg := base

	if n.Analysis == AnalysisTRAN {
		p := n.TranParam
		if !(p.TStep > 0) || !(p.TStop >= p.TStep) {
			return cfg, fmt.Errorf("invalid .tran: tstep %g, tstop %g", p.TStep, p.TStop)
		}
		cfg.TimeStep = p.TStep
		cfg.Steps = int(math.Round(p.TStop / p.TStep))
		cfg.StartTime = p.TStart
		cfg.UseOperatingPoint = !p.UIC
	}

	for name, value := range n.Options {
		var err error
		switch name {
		case "solver":
			cfg.Solver, err = matrix.ParseKind(value)
		case "maxiter", "itl1":
			var v float64
			v, err = ParseValue(value)
			cfg.MaxIter = int(v)
		case "reltol":
			cfg.Reltol, err = ParseValue(value)
		case "vntol":
			cfg.VoltageTol, err = ParseValue(value)
		case "abstol":
			cfg.CurrentTol, err = ParseValue(value)
		case "gmin":
			cfg.Gmin, err = ParseValue(value)
		default:
			err = fmt.Errorf("unknown option")
		}
		if err != nil {
			return cfg, fmt.Errorf("option %s=%s: %w", name, value, err)
		}
	}

	return cfg, cfg.Validate()
}

// Sweeps returns the .dc sweep sources.
func (n *NetlistData) Sweeps() []analysis.Sweep {
	if n.Analysis != AnalysisDC {
		return nil
	}

	p := n.DCParam
	sweeps := []analysis.Sweep{{Source: p.Source1, Start: p.Start1, Stop: p.Stop1, Step: p.Increment1}}
	if p.Source2 != "" {
		sweeps = append(sweeps, analysis.Sweep{Source: p.Source2, Start: p.Start2, Stop: p.Stop2, Step: p.Increment2})
	}
	return sweeps
}

// Summary lists the parsed elements, one per line.
func (n *NetlistData) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d elements, analysis %s\n", n.Title, len(n.Elements), n.Analysis)
	for i, elem := range n.Elements {
		fmt.Fprintf(&sb, "Element %d: %s (type: %s, nodes: %v)\n", i, elem.Name, elem.Type, elem.Nodes)
	}
	return sb.String()
}
