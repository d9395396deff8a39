// Package waveform collects analysis results into named series and writes
// them out as JSON, static plots or an interactive HTML page.
package waveform

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Record holds named series over one shared axis, time for a transient and
// the first source value for a DC sweep.
type Record struct {
	Title  string               `json:"title"`
	Axis   string               `json:"axis"`
	X      []float64            `json:"x"`
	Series map[string][]float64 `json:"series"`
}

// FromResults builds a record from an analysis result map.
func FromResults(title string, results map[string][]float64) (*Record, error) {
	axis := ""
	for _, name := range []string{"TIME", "SWEEP1"} {
		if _, ok := results[name]; ok {
			axis = name
			break
		}
	}
	if axis == "" {
		return nil, fmt.Errorf("results have no TIME or SWEEP1 axis")
	}

	x := results[axis]
	rec := &Record{
		Title:  title,
		Axis:   axis,
		X:      append([]float64(nil), x...),
		Series: make(map[string][]float64, len(results)-1),
	}
	for name, values := range results {
		if name == axis {
			continue
		}
		if len(values) != len(x) {
			return nil, fmt.Errorf("series %s has %d samples, axis %s has %d", name, len(values), axis, len(x))
		}
		rec.Series[name] = append([]float64(nil), values...)
	}

	return rec, nil
}

// Names lists the series in sorted order.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.Series))
	for name := range r.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Voltages and Currents pick the V(..) and I(..) series.
func (r *Record) Voltages() []string { return r.withPrefix("V(") }
func (r *Record) Currents() []string { return r.withPrefix("I(") }

func (r *Record) withPrefix(prefix string) []string {
	var names []string
	for _, name := range r.Names() {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

func (r *Record) series(names []string) ([][]float64, error) {
	data := make([][]float64, len(names))
	for i, name := range names {
		values, ok := r.Series[name]
		if !ok {
			return nil, fmt.Errorf("no series named %s", name)
		}
		data[i] = values
	}
	return data, nil
}

func (r *Record) axisLabel() string {
	if r.Axis == "TIME" {
		return "Time (s)"
	}
	return "Sweep"
}

// WriteJSON encodes the record.
func (r *Record) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ReadJSON decodes a record written by WriteJSON.
func ReadJSON(rd io.Reader) (*Record, error) {
	var rec Record
	if err := json.NewDecoder(rd).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding waveform: %w", err)
	}
	return &rec, nil
}
