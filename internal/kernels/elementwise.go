package kernels

import "github.com/born-ml/kernelpool/internal/parallel"

// Add stores a + b into dst. All three slices must have the same length;
// dst may alias either input.
func Add(p parallel.ThreadPool, dst, a, b []float32) error {
	return binary(p, "add", dst, a, b, func(x, y float32) float32 { return x + y })
}

// Mul stores a * b into dst.
func Mul(p parallel.ThreadPool, dst, a, b []float32) error {
	return binary(p, "mul", dst, a, b, func(x, y float32) float32 { return x * y })
}

// Scale stores s * a into dst.
func Scale(p parallel.ThreadPool, dst, a []float32, s float32) error {
	if len(dst) != len(a) {
		return &ShapeError{Op: "scale", A: []int{len(dst)}, B: []int{len(a)}, Err: ErrShapeMismatch}
	}
	return parallel.TryParallelFor(p, len(a), parallel.Uniform, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = s * a[i]
		}
	})
}

func binary(p parallel.ThreadPool, op string, dst, a, b []float32, f func(x, y float32) float32) error {
	if len(a) != len(b) {
		return &ShapeError{Op: op, A: []int{len(a)}, B: []int{len(b)}, Err: ErrShapeMismatch}
	}
	if len(dst) != len(a) {
		return &ShapeError{Op: op, A: []int{len(dst)}, B: []int{len(a)}, Err: ErrShapeMismatch}
	}
	return parallel.TryParallelFor(p, len(a), parallel.Uniform, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = f(a[i], b[i])
		}
	})
}
