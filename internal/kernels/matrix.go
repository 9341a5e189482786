// Package kernels implements float32 CPU kernels that fan their work out
// over a parallel.ThreadPool.
//
// Every kernel accepts a nil pool and then runs on the calling goroutine.
// Work is split by rows or elements, never inside the inner loops, so the
// results are bitwise identical for every pool size.
package kernels

import "fmt"

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows, Cols int
	Data       []float32
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, &ShapeError{Op: "new", A: []int{rows, cols}, Err: ErrInvalidShape}
	}
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}, nil
}

// FromSlice wraps data as a rows x cols matrix without copying.
func FromSlice(rows, cols int, data []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, &ShapeError{Op: "from_slice", A: []int{rows, cols}, B: []int{len(data)}, Err: ErrInvalidShape}
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// Shape returns [Rows, Cols].
func (m *Matrix) Shape() []int {
	return []int{m.Rows, m.Cols}
}

// Row returns row i as a slice of m.Data.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d)", m.Rows, m.Cols)
}
