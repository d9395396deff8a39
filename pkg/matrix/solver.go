package matrix

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrSingularMatrix is returned when the assembled system has no unique solution.
	ErrSingularMatrix = errors.New("matrix: singular system")
	// ErrIndexOutOfRange is returned when a stamp addresses a row or column outside the matrix.
	ErrIndexOutOfRange = errors.New("matrix: index out of range")
)

// Solver is the linear-system boundary used by the analyses: stamp with
// AddElement/AddRHS, then Solve, then read Solution.
type Solver interface {
	DeviceMatrix
	Size() int
	Clear()
	Solve() error
	// Solution is 1-based; index 0 holds the ground voltage (always 0).
	Solution() []float64
	PrintSystem(w io.Writer)
	Destroy()
}

type Kind string

const (
	KindSparse Kind = "sparse"
	KindDense  Kind = "dense"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSparse, "":
		return KindSparse, nil
	case KindDense:
		return KindDense, nil
	default:
		return "", fmt.Errorf("unknown solver kind %q", s)
	}
}

// New creates a solver of the given kind for a size x size system.
func New(kind Kind, size int) (Solver, error) {
	switch kind {
	case KindSparse, "":
		return NewMatrix(size)
	case KindDense:
		return NewDenseMatrix(size)
	default:
		return nil, fmt.Errorf("unknown solver kind %q", kind)
	}
}

func outOfRange(i, j, size int) error {
	return fmt.Errorf("%w: (%d,%d) in %dx%d system", ErrIndexOutOfRange, i, j, size, size)
}
