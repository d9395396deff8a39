package matrix

import (
	"fmt"
	"io"

	"github.com/edp1096/sparse"
)

// CircuitMatrix is the MNA system backed by the sparse LU package.
type CircuitMatrix struct {
	size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	config   *sparse.Configuration
	err      error
}

var _ Solver = (*CircuitMatrix)(nil)

func NewMatrix(size int) (*CircuitMatrix, error) {
	// Translate keeps external row/column numbers valid after pivoting
	// reorders the internal ones.
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 false,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               true,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %w", err)
	}

	m := &CircuitMatrix{
		size:     size,
		matrix:   mat,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
		config:   config,
	}
	m.setupElements()

	return m, nil
}

// setupElements allocates the full pattern in row order so the external to
// internal translation starts as the identity.
func (m *CircuitMatrix) setupElements() {
	for i := 1; i <= m.size; i++ {
		for j := 1; j <= m.size; j++ {
			m.matrix.GetElement(int64(i), int64(j))
		}
	}
}

func (m *CircuitMatrix) Size() int {
	return m.size
}

func (m *CircuitMatrix) AddElement(i, j int, value float64) {
	if i == 0 || j == 0 {
		return
	}
	if i < 0 || j < 0 || i > m.size || j > m.size {
		if m.err == nil {
			m.err = outOfRange(i, j, m.size)
		}
		return
	}
	m.matrix.GetElement(int64(i), int64(j)).Real += value
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	if i == 0 {
		return
	}
	if i < 0 || i > m.size {
		if m.err == nil {
			m.err = outOfRange(i, 0, m.size)
		}
		return
	}
	m.rhs[i] += value
}

func (m *CircuitMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	m.err = nil
}

func (m *CircuitMatrix) Solve() error {
	if m.err != nil {
		return m.err
	}

	// Newton updates move conductances by many decades between iterations,
	// so pivots are chosen again on every factorization.
	m.matrix.NeedsOrdering = true

	err := m.matrix.Factor()
	if err != nil {
		return fmt.Errorf("%w: factorization failed: %v", ErrSingularMatrix, err)
	}

	solution, err := m.matrix.Solve(m.rhs)
	if err != nil {
		return fmt.Errorf("%w: solve failed: %v", ErrSingularMatrix, err)
	}
	m.solution = solution

	return nil
}

func (m *CircuitMatrix) Solution() []float64 {
	return m.solution
}

// PrintSystem writes the stamped equations. It must be called before Solve,
// which overwrites the entries with their LU factors.
func (m *CircuitMatrix) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "\nCircuit Equations (%dx%d):\n", m.size, m.size)
	fmt.Fprintln(w, "Node equations 1..n, followed by branch equations")

	for i := 1; i <= m.size; i++ {
		fmt.Fprintf(w, "Equation %d:", i)
		for j := 1; j <= m.size; j++ {
			element := m.matrix.GetElement(int64(i), int64(j))
			if element.Real != 0 {
				fmt.Fprintf(w, "  %+g*x%d", element.Real, j)
			}
		}
		fmt.Fprintf(w, " = %g\n", m.rhs[i])
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
		m.matrix = nil
	}
}
