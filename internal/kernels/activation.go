package kernels

import (
	"math"

	"github.com/born-ml/kernelpool/internal/parallel"
)

// Softmax computes softmax over every row of x.
// Softmax(x_i) = exp(x_i - max) / sum(exp(x_j - max)).
func Softmax(p parallel.ThreadPool, x *Matrix) (*Matrix, error) {
	if x.Rows > 0 && x.Cols == 0 {
		return nil, &ShapeError{Op: "softmax", A: x.Shape(), Err: ErrInvalidShape}
	}

	d := x.Cols
	out := &Matrix{Rows: x.Rows, Cols: d, Data: make([]float32, len(x.Data))}

	// Three passes read a row (max, sum, divide), one writes it.
	cost := parallel.Cost{
		BytesLoaded:   float64(3 * d * float32Bytes),
		BytesStored:   float64(d * float32Bytes),
		ComputeCycles: float64(3 * d),
	}
	err := parallel.TryParallelFor(p, x.Rows, cost, func(start, end int) {
		for row := start; row < end; row++ {
			softmaxRow(out.Row(row), x.Row(row))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func softmaxRow(dst, src []float32) {
	// Find max for numerical stability
	maxVal := float32(math.Inf(-1))
	for _, v := range src {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range src {
		e := float32(math.Exp(float64(v - maxVal)))
		dst[i] = e
		sum += e
	}

	for i := range dst {
		dst[i] /= sum
	}
}

// ReLU returns max(0, x) for every element of x.
func ReLU(p parallel.ThreadPool, x []float32) ([]float32, error) {
	out := make([]float32, len(x))
	err := parallel.TryParallelFor(p, len(x), parallel.Uniform, func(start, end int) {
		for i := start; i < end; i++ {
			if x[i] > 0 {
				out[i] = x[i]
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
