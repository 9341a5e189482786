package kernels

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrInvalidShape  = errors.New("invalid shape")
)

// ShapeError describes operands whose shapes do not fit an operation.
type ShapeError struct {
	Op  string // Kernel name, e.g. "matmul".
	A   []int  // Shape of the first operand.
	B   []int  // Shape of the second operand, nil for unary kernels.
	Err error  // ErrShapeMismatch or ErrInvalidShape.
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.B == nil {
		return fmt.Sprintf("%s: %v %v", e.Op, e.Err, e.A)
	}
	return fmt.Sprintf("%s: %v %v and %v", e.Op, e.Err, e.A, e.B)
}

// Unwrap returns the sentinel the error classifies as.
func (e *ShapeError) Unwrap() error {
	return e.Err
}
