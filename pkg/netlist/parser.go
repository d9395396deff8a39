package netlist

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/edp1096/tiny-spice/internal/consts"
)

type AnalysisType int

const (
	AnalysisNone AnalysisType = iota
	AnalysisOP
	AnalysisTRAN
	AnalysisDC
)

func (a AnalysisType) String() string {
	switch a {
	case AnalysisOP:
		return "op"
	case AnalysisTRAN:
		return "tran"
	case AnalysisDC:
		return "dc"
	default:
		return "none"
	}
}

type NetlistData struct {
	Title     string           // Circuit title
	Elements  []Element        // Circuit elements
	Models    map[string]Model // Model parameters
	Analysis  AnalysisType     // Last analysis command
	TempC     float64          // Circuit temperature (degC)
	Options   map[string]string
	TranParam struct {
		TStep  float64 // timestep
		TStop  float64 // stop time
		TStart float64 // start time
		UIC    bool    // Use Initial Conditions
	}
	DCParam struct {
		Source1    string
		Start1     float64
		Stop1      float64
		Increment1 float64
		Source2    string
		Start2     float64
		Stop2      float64
		Increment2 float64
	}
}

type Element struct {
	Type   string            // Part type (R, C, D, V, I)
	Name   string            // Part name
	Nodes  []int             // Node numbers, 0 is ground
	Value  float64           // Part value
	Params map[string]string // Parameter values
}

type Model struct {
	Type   string
	Name   string
	Params map[string]float64
}

// Suffixes are case-insensitive, so M is milli and meg is mega.
var unitMap = map[string]float64{
	"t":   1e12,  // tera
	"g":   1e9,   // giga
	"meg": 1e6,   // mega
	"k":   1e3,   // kilo
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var (
	valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)((?i:meg|[tgkmunpf]))?[a-zA-Z]*$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Parse reads a netlist. The first line is the title.
func Parse(input string) (*NetlistData, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	netlistData := &NetlistData{
		Models:  make(map[string]Model),
		Options: make(map[string]string),
		TempC:   consts.ROOMTEMP,
	}

	// Title or comment
	if scanner.Scan() {
		netlistData.Title = strings.TrimPrefix(scanner.Text(), "*")
		netlistData.Title = strings.TrimSpace(netlistData.Title)
	}

	var currentLine string
	lineNo := 1
	startLine := 0

	flush := func() error {
		if currentLine == "" {
			return nil
		}
		err := parseLine(netlistData, currentLine)
		currentLine = ""
		if err != nil {
			return fmt.Errorf("line %d: %w", startLine, err)
		}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Whole-line and trailing comments
		if idx := strings.IndexAny(line, "*;"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if len(line) == 0 {
			continue
		}

		if strings.HasPrefix(line, "+") { // Line continue
			if currentLine == "" {
				return nil, fmt.Errorf("line %d: continuation without a preceding line", lineNo)
			}
			currentLine += " " + strings.TrimSpace(line[1:])
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		if strings.EqualFold(line, ".end") {
			break
		}
		currentLine = line
		startLine = lineNo
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return netlistData, nil
}

func parseLine(netlistData *NetlistData, line string) error {
	line = spaceRe.ReplaceAllString(line, " ")

	if strings.HasPrefix(line, ".") {
		return parseDotOperator(netlistData, line)
	}

	element, err := parseElement(line)
	if err != nil {
		return err
	}
	netlistData.Elements = append(netlistData.Elements, *element)
	return nil
}

// Parse .op, .tran, .dc, .model, .temp, .options
func parseDotOperator(netlistData *NetlistData, line string) error {
	var err error

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ".model":
		return parseModel(netlistData, fields[1:])

	case ".op":
		netlistData.Analysis = AnalysisOP

	case ".tran":
		netlistData.Analysis = AnalysisTRAN
		if len(fields) < 3 {
			return fmt.Errorf("insufficient tran parameters, need at least tstep and tstop")
		}
		netlistData.TranParam.TStep, err = ParseValue(fields[1])
		if err != nil {
			return fmt.Errorf("invalid tstep: %w", err)
		}
		netlistData.TranParam.TStop, err = ParseValue(fields[2])
		if err != nil {
			return fmt.Errorf("invalid tstop: %w", err)
		}
		for i := 3; i < len(fields); i++ {
			if strings.EqualFold(fields[i], "uic") {
				netlistData.TranParam.UIC = true
				continue
			}
			if i == 3 {
				netlistData.TranParam.TStart, err = ParseValue(fields[i])
				if err != nil {
					return fmt.Errorf("invalid tstart: %w", err)
				}
			}
		}

	case ".dc":
		netlistData.Analysis = AnalysisDC
		if len(fields) != 5 && len(fields) != 9 {
			return fmt.Errorf("dc sweep needs source start stop increment, optionally twice")
		}
		p := &netlistData.DCParam
		p.Source1 = fields[1]
		if p.Start1, p.Stop1, p.Increment1, err = parseSweep(fields[2:5]); err != nil {
			return err
		}
		if len(fields) == 9 {
			p.Source2 = fields[5]
			if p.Start2, p.Stop2, p.Increment2, err = parseSweep(fields[6:9]); err != nil {
				return err
			}
		}

	case ".temp":
		if len(fields) < 2 {
			return fmt.Errorf("missing temperature")
		}
		netlistData.TempC, err = ParseValue(fields[1])
		if err != nil {
			return fmt.Errorf("invalid temperature: %w", err)
		}

	case ".options", ".option":
		for _, field := range fields[1:] {
			name, value, ok := strings.Cut(field, "=")
			if !ok {
				return fmt.Errorf("invalid option %q, want name=value", field)
			}
			netlistData.Options[strings.ToLower(name)] = value
		}

	default:
		return fmt.Errorf("unsupported command: %s", fields[0])
	}
	return nil
}

func parseSweep(fields []string) (start, stop, incr float64, err error) {
	if start, err = ParseValue(fields[0]); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start value: %w", err)
	}
	if stop, err = ParseValue(fields[1]); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid stop value: %w", err)
	}
	if incr, err = ParseValue(fields[2]); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid increment value: %w", err)
	}
	return start, stop, incr, nil
}

// parseModel reads ".model NAME D(IS=1e-14 ...)", with or without the
// parentheses.
func parseModel(netlistData *NetlistData, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("insufficient model parameters")
	}
	modelName := fields[0]

	rest := strings.Join(fields[1:], " ")
	rest = strings.ReplaceAll(rest, "(", " ")
	rest = strings.ReplaceAll(rest, ")", " ")
	words := strings.Fields(rest)

	modelType := strings.ToUpper(words[0])
	if modelType != "D" {
		return fmt.Errorf("unsupported model type: %s", modelType)
	}

	params := map[string]float64{
		"is": 1e-14, // Saturation current
	}
	for _, pair := range words[1:] {
		name, valueStr, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid model parameter %q", pair)
		}
		value, err := ParseValue(valueStr)
		if err != nil {
			return fmt.Errorf("invalid parameter value %s: %w", pair, err)
		}
		params[strings.ToLower(name)] = value
	}

	netlistData.Models[modelName] = Model{
		Type:   modelType,
		Name:   modelName,
		Params: params,
	}
	return nil
}

// Parse circuit element
func parseElement(line string) (*Element, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid element format: %s", line)
	}

	elem := &Element{
		Type:   strings.ToUpper(fields[0][:1]),
		Name:   fields[0],
		Params: make(map[string]string),
	}

	nodes, err := parseNodes(fields[1:3])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", elem.Name, err)
	}
	elem.Nodes = nodes

	switch elem.Type {
	case "R", "C":
		if len(fields) < 4 {
			return nil, fmt.Errorf("%s: missing value", elem.Name)
		}
		elem.Value, err = ParseValue(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", elem.Name, err)
		}
		for _, field := range fields[4:] {
			name, value, ok := strings.Cut(field, "=")
			if !ok {
				return nil, fmt.Errorf("%s: unexpected field %q", elem.Name, field)
			}
			elem.Params[strings.ToLower(name)] = value
		}

	case "D":
		if len(fields) > 3 {
			elem.Params["model"] = fields[3]
		}

	case "V", "I":
		if err := parseSource(elem, fields[3:]); err != nil {
			return nil, fmt.Errorf("%s: %w", elem.Name, err)
		}

	default:
		return nil, fmt.Errorf("unsupported element type: %s", fields[0])
	}

	return elem, nil
}

func parseNodes(fields []string) ([]int, error) {
	nodes := make([]int, len(fields))
	for i, field := range fields {
		if strings.EqualFold(field, "gnd") {
			nodes[i] = 0
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid node %q, nodes are numbered", field)
		}
		nodes[i] = n
	}
	return nodes, nil
}

// parseSource reads "DC v", a bare value or, for current sources,
// "SIN(vo va freq)".
func parseSource(elem *Element, fields []string) error {
	remaining := strings.Join(fields, " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ") // Append whitespace around parentheses
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)
	if len(words) == 0 {
		return fmt.Errorf("missing source value")
	}

	var err error
	switch strings.ToUpper(words[0]) {
	case "DC":
		if len(words) < 2 {
			return fmt.Errorf("missing DC value")
		}
		elem.Params["type"] = "dc"
		elem.Value, err = ParseValue(words[1])
		return err

	case "SIN":
		if elem.Type != "I" {
			return fmt.Errorf("SIN is only supported on current sources")
		}
		elem.Params["type"] = "sin"
		sinParams := strings.Join(words[1:], " ")
		elem.Params["sin"] = strings.Trim(sinParams, "() ")
		return nil

	default:
		elem.Params["type"] = "dc"
		elem.Value, err = ParseValue(words[0])
		return err
	}
}

// ParseValue - Parse value and factor. 1k -> 1000
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	// factor
	if factor := matches[2]; factor != "" {
		num *= unitMap[strings.ToLower(factor)]
	}

	return num, nil
}

func parseSinParams(params string) (offset, amplitude, freq float64, err error) {
	sinParams := strings.Fields(params)
	if len(sinParams) < 3 {
		return 0, 0, 0, fmt.Errorf("insufficient SIN parameters")
	}

	// DC offset
	offset, err = ParseValue(sinParams[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid SIN offset: %w", err)
	}
	// Amplitude
	amplitude, err = ParseValue(sinParams[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid SIN amplitude: %w", err)
	}
	// Frequency
	freq, err = ParseValue(sinParams[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid SIN frequency: %w", err)
	}

	return offset, amplitude, freq, nil
}
