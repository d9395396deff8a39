package waveform

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/edp1096/tiny-spice/pkg/util"
)

// RenderHTML writes an interactive page with one chart for the voltages and
// one for the voltage-source currents.
func (r *Record) RenderHTML(w io.Writer) error {
	page := components.NewPage()

	unit := "V"
	if r.Axis == "TIME" {
		unit = "s"
	}
	xAxis := make([]string, len(r.X))
	for i, x := range r.X {
		xAxis[i] = util.FormatValueFactor(x, unit)
	}

	added := 0
	for _, group := range []struct {
		title string
		names []string
	}{
		{"Node voltages", r.Voltages()},
		{"Branch currents", r.Currents()},
	} {
		if len(group.names) == 0 {
			continue
		}
		line, err := r.lineChart(group.title, xAxis, group.names)
		if err != nil {
			return err
		}
		page.AddCharts(line)
		added++
	}
	if added == 0 {
		return fmt.Errorf("nothing to chart")
	}

	return page.Render(w)
}

func (r *Record) lineChart(title string, xAxis, names []string) (*charts.Line, error) {
	data, err := r.series(names)
	if err != nil {
		return nil, err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: r.Title,
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:        r.axisLabel(),
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	)

	line.SetXAxis(xAxis)
	for i, name := range names {
		items := make([]opts.LineData, len(data[i]))
		for j, v := range data[i] {
			items[j] = opts.LineData{Value: v}
		}
		line.AddSeries(name, items)
	}

	return line, nil
}
