package matrix

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DenseMatrix is the MNA system solved by a dense LU decomposition.
type DenseMatrix struct {
	size     int
	a        *mat.Dense
	rhs      []float64
	solution []float64
	err      error
}

var _ Solver = (*DenseMatrix)(nil)

func NewDenseMatrix(size int) (*DenseMatrix, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size: %d", size)
	}

	return &DenseMatrix{
		size:     size,
		a:        mat.NewDense(size, size, nil),
		rhs:      make([]float64, size+1),
		solution: make([]float64, size+1),
	}, nil
}

func (m *DenseMatrix) Size() int {
	return m.size
}

func (m *DenseMatrix) AddElement(i, j int, value float64) {
	if i == 0 || j == 0 {
		return
	}
	if i < 0 || j < 0 || i > m.size || j > m.size {
		if m.err == nil {
			m.err = outOfRange(i, j, m.size)
		}
		return
	}
	m.a.Set(i-1, j-1, m.a.At(i-1, j-1)+value)
}

func (m *DenseMatrix) AddRHS(i int, value float64) {
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

func (m *DenseMatrix) Clear() {
	m.a.Zero()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	m.err = nil
}

func (m *DenseMatrix) Solve() error {
	if m.err != nil {
		return m.err
	}

	var lu mat.LU
	lu.Factorize(m.a)

	b := mat.NewVecDense(m.size, append([]float64(nil), m.rhs[1:]...))
	var x mat.VecDense
	err := lu.SolveVecTo(&x, false, b)
	if err != nil {
		// An ill-conditioned system still produces a solution; only an
		// exactly singular one is fatal.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return fmt.Errorf("%w: %v", ErrSingularMatrix, err)
		}
	}

	solution := make([]float64, m.size+1)
	for i := 0; i < m.size; i++ {
		solution[i+1] = x.AtVec(i)
		if math.IsNaN(solution[i+1]) || math.IsInf(solution[i+1], 0) {
			return fmt.Errorf("%w: zero pivot", ErrSingularMatrix)
		}
	}
	m.solution = solution

	return nil
}

func (m *DenseMatrix) Solution() []float64 {
	return m.solution
}

func (m *DenseMatrix) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "\nCircuit Equations (%dx%d):\n", m.size, m.size)
	fmt.Fprintf(w, "%v\n", mat.Formatted(m.a, mat.Prefix(""), mat.Squeeze()))
	fmt.Fprintf(w, "RHS: %v\n", m.rhs[1:])
}

func (m *DenseMatrix) Destroy() {}
