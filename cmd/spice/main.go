package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edp1096/tiny-spice/pkg/analysis"
	"github.com/edp1096/tiny-spice/pkg/matrix"
	"github.com/edp1096/tiny-spice/pkg/netlist"
	"github.com/edp1096/tiny-spice/pkg/util"
	"github.com/edp1096/tiny-spice/pkg/waveform"
)

type options struct {
	solver   string
	verbose  bool
	jsonPath string
	plotPath string
	htmlPath string
	quiet    bool
}

func splitNames(results map[string][]float64) (voltageNames, currentNames []string) {
	for name := range results {
		if strings.HasPrefix(name, "V(") {
			voltageNames = append(voltageNames, name)
		} else if strings.HasPrefix(name, "I(") {
			currentNames = append(currentNames, name)
		}
	}
	sort.Strings(voltageNames)
	sort.Strings(currentNames)
	return voltageNames, currentNames
}

func printRow(w io.Writer, results map[string][]float64, voltageNames, currentNames []string, i int) {
	for _, name := range voltageNames {
		fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], "V"))
	}
	for _, name := range currentNames {
		fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], "A"))
	}
	fmt.Fprintln(w)
}

func printResults(w io.Writer, results map[string][]float64) {
	fmt.Fprintln(w, "\nAnalysis Results:")
	fmt.Fprintln(w, "================")

	voltageNames, currentNames := splitNames(results)

	// DC Sweep
	if sweep1, isDC := results["SWEEP1"]; isDC {
		fmt.Fprintf(w, "\nDC Sweep Analysis Results (%d points):\n", len(sweep1))
		fmt.Fprintln(w, "Sweep Values    Node Voltages        Branch Currents")
		fmt.Fprintln(w, "------------------------------------------------")

		sweep2, hasNested := results["SWEEP2"]
		for i := range sweep1 {
			if hasNested {
				fmt.Fprintf(w, "S1=%-9s S2=%-9s  ",
					util.FormatValueFactor(sweep1[i], ""),
					util.FormatValueFactor(sweep2[i], ""))
			} else {
				fmt.Fprintf(w, "S=%-9s  ", util.FormatValueFactor(sweep1[i], ""))
			}
			printRow(w, results, voltageNames, currentNames, i)
		}
		return
	}

	// Operating point
	times, isTran := results["TIME"]
	if !isTran {
		fmt.Fprintln(w, "\nNode Voltages:")
		for _, name := range voltageNames {
			fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(results[name][0], "V"))
		}
		fmt.Fprintln(w, "\nBranch Currents:")
		for _, name := range currentNames {
			fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(results[name][0], "A"))
		}
		return
	}

	// Transient
	fmt.Fprintf(w, "\nTransient Analysis Results (%d time points):\n", len(times))
	fmt.Fprintln(w, "Time        Node Voltages        Branch Currents")
	fmt.Fprintln(w, "------------------------------------------------")
	for i, t := range times {
		fmt.Fprintf(w, "%9s  ", util.FormatValueFactor(t, "s"))
		printRow(w, results, voltageNames, currentNames, i)
	}
}

func newAnalyzer(data *netlist.NetlistData, config analysis.Config) analysis.Analysis {
	switch data.Analysis {
	case netlist.AnalysisTRAN:
		return analysis.NewTransient(config)
	case netlist.AnalysisDC:
		return analysis.NewDCSweep(config, data.Sweeps()...)
	default:
		return analysis.NewOP(config)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func exportResults(title string, results map[string][]float64, opt options) error {
	if opt.jsonPath == "" && opt.plotPath == "" && opt.htmlPath == "" {
		return nil
	}

	rec, err := waveform.FromResults(title, results)
	if err != nil {
		return err
	}

	if opt.jsonPath != "" {
		if err := writeFile(opt.jsonPath, rec.WriteJSON); err != nil {
			return err
		}
	}
	if opt.plotPath != "" {
		format := strings.TrimPrefix(filepath.Ext(opt.plotPath), ".")
		if err := writeFile(opt.plotPath, func(w io.Writer) error { return rec.RenderPlot(w, format) }); err != nil {
			return err
		}
	}
	if opt.htmlPath != "" {
		if err := writeFile(opt.htmlPath, rec.RenderHTML); err != nil {
			return err
		}
	}
	return nil
}

// run simulates one netlist file and prints the results to stdout.
func run(path string, opt options, stdout, stderr io.Writer) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading netlist file: %w", err)
	}

	data, err := netlist.Parse(string(content))
	if err != nil {
		return fmt.Errorf("parsing netlist: %w", err)
	}
	if opt.verbose {
		fmt.Fprint(stderr, data.Summary())
	}

	ckt, err := data.Build()
	if err != nil {
		return fmt.Errorf("building circuit: %w", err)
	}

	base := analysis.DefaultConfig()
	base.Logger = log.New(stderr, "", 0)
	base.Verbose = opt.verbose
	config, err := data.Config(base)
	if err != nil {
		return err
	}
	if opt.solver != "" {
		if config.Solver, err = matrix.ParseKind(opt.solver); err != nil {
			return err
		}
	}

	analyzer := newAnalyzer(data, config)
	defer analyzer.Destroy()

	if err := analyzer.Setup(ckt); err != nil {
		return fmt.Errorf("analysis setup failed: %w", err)
	}
	if err := analyzer.Execute(); err != nil {
		return fmt.Errorf("analysis execution failed: %w", err)
	}

	results := analyzer.GetResults()
	if !opt.quiet {
		printResults(stdout, results)
	}
	return exportResults(data.Title, results, opt)
}

func main() {
	var opt options
	flag.StringVar(&opt.solver, "solver", "", "linear solver: sparse or dense (overrides .options solver)")
	flag.BoolVar(&opt.verbose, "v", false, "print the netlist summary, the first system and Newton progress")
	flag.StringVar(&opt.jsonPath, "json", "", "write the waveforms as JSON to `file`")
	flag.StringVar(&opt.plotPath, "plot", "", "plot node voltages to `file` (.png, .svg, .pdf)")
	flag.StringVar(&opt.htmlPath, "html", "", "write an interactive chart page to `file`")
	flag.BoolVar(&opt.quiet, "q", false, "do not print the result table")
	version := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *version {
		analysis.Banner(os.Stdout)
		return
	}
	if flag.NArg() != 1 {
		log.Fatal("Usage: spice [flags] <netlist_file>")
	}

	if err := run(flag.Arg(0), opt, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
