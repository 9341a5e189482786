package kernels

import "github.com/born-ml/kernelpool/internal/parallel"

// SumRows returns the sum of every row of x, one contiguous batch of rows
// per participating thread.
func SumRows(p parallel.ThreadPool, x *Matrix) ([]float32, error) {
	out := make([]float32, x.Rows)
	err := parallel.TryBatchParallelFor(p, x.Rows, func(row int) {
		var sum float32
		for _, v := range x.Row(row) {
			sum += v
		}
		out[row] = sum
	}, 0)
	if err != nil {
		return nil, err
	}
	return out, nil
}
