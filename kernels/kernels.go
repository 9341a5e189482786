// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package kernels provides float32 CPU kernels that run on a
// parallel.ThreadPool. A nil pool runs every kernel on the caller.
package kernels

import (
	internal "github.com/born-ml/kernelpool/internal/kernels"
	"github.com/born-ml/kernelpool/parallel"
)

// Matrix is a dense row-major float32 matrix.
type Matrix = internal.Matrix

// ShapeError describes operands whose shapes do not fit a kernel.
type ShapeError = internal.ShapeError

// Common errors.
var (
	ErrShapeMismatch = internal.ErrShapeMismatch
	ErrInvalidShape  = internal.ErrInvalidShape
)

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) (*Matrix, error) {
	return internal.NewMatrix(rows, cols)
}

// FromSlice wraps data as a rows x cols matrix without copying.
func FromSlice(rows, cols int, data []float32) (*Matrix, error) {
	return internal.FromSlice(rows, cols, data)
}

// MatMul computes a @ b.
func MatMul(p parallel.ThreadPool, a, b *Matrix) (*Matrix, error) {
	return internal.MatMul(p, a, b)
}

// Softmax computes softmax over every row of x.
func Softmax(p parallel.ThreadPool, x *Matrix) (*Matrix, error) {
	return internal.Softmax(p, x)
}

// ReLU returns max(0, x) element-wise.
func ReLU(p parallel.ThreadPool, x []float32) ([]float32, error) {
	return internal.ReLU(p, x)
}

// Add stores a + b into dst.
func Add(p parallel.ThreadPool, dst, a, b []float32) error {
	return internal.Add(p, dst, a, b)
}

// Mul stores a * b into dst.
func Mul(p parallel.ThreadPool, dst, a, b []float32) error {
	return internal.Mul(p, dst, a, b)
}

// Scale stores s * a into dst.
func Scale(p parallel.ThreadPool, dst, a []float32, s float32) error {
	return internal.Scale(p, dst, a, s)
}

// SumRows returns the sum of every row of x.
func SumRows(p parallel.ThreadPool, x *Matrix) ([]float32, error) {
	return internal.SumRows(p, x)
}
