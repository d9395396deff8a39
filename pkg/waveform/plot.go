package waveform

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// RenderPlot draws the named series, or every voltage when names is empty,
// as a static image. format is any gonum/plot format: png, svg, pdf, ...
func (r *Record) RenderPlot(w io.Writer, format string, names ...string) error {
	if len(names) == 0 {
		names = r.Voltages()
	}
	if len(names) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	data, err := r.series(names)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = r.Title
	p.X.Label.Text = r.axisLabel()
	p.Add(plotter.NewGrid())

	for i, name := range names {
		pts := make(plotter.XYs, len(r.X))
		for j := range r.X {
			pts[j].X = r.X[j]
			pts[j].Y = data[i][j]
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))

		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
